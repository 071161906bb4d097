// Package decorator implements the pipeline decorators: authorization,
// circuit breaker, retry, content preview, metrics, decoding and
// timeouts, each wrapping a ports.Service/ports.Client with the same
// composable shape.
package decorator

import "github.com/thushan/olla/internal/core/ports"

// Chain re-exports ports.Chain so callers building a pipeline only need
// to import this package.
var Chain = ports.Chain

// ChainClient re-exports ports.ChainClient.
var ChainClient = ports.ChainClient
