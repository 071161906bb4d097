// Package app wires the pipeline runtime together: configuration,
// endpoint discovery, the decorator chain, the HTTP/1.1 and HTTP/2
// codecs and connection pool, and the inbound listener. It is the
// composition root main.go calls into, mirroring the shape of the
// teacher's own internal/app bootstrap (logger first, config second,
// signal-driven Start/Stop).
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/thushan/olla/internal/config"
	"github.com/thushan/olla/internal/core/domain"
	"github.com/thushan/olla/internal/core/ports"
	"github.com/thushan/olla/internal/logger"
)

// Application owns every long-lived resource the runtime needs and
// exposes the Start/Stop lifecycle main.go drives from a signal handler.
type Application struct {
	cfg    *config.Config
	log    *logger.StyledLogger
	loopID int64

	service ports.Service
	server  *http.Server

	bundle *pipelineBundle

	startTime time.Time
}

// New loads configuration and assembles the full pipeline, but performs
// no I/O (no listener bound, no health checker started) - that happens
// in Start so construction failures and startup failures are reported
// distinctly: "failed to create application" versus "failed to start
// application".
func New(startTime time.Time, log *logger.StyledLogger) (*Application, error) {
	cfg, err := config.Load(nil)
	if err != nil {
		return nil, fmt.Errorf("app: loading config: %w", err)
	}

	bundle, err := buildPipeline(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("app: building pipeline: %w", err)
	}

	return &Application{
		cfg:       cfg,
		log:       log,
		service:   bundle.service,
		bundle:    bundle,
		startTime: startTime,
	}, nil
}

// Start binds the inbound listener and begins endpoint health checking
// (when configured). It returns once the listener is accepting
// connections; serving happens on background goroutines.
func (a *Application) Start(ctx context.Context) error {
	if a.bundle.healthChecker != nil {
		if err := a.bundle.healthChecker.Start(ctx); err != nil {
			return fmt.Errorf("app: starting health checker: %w", err)
		}
	}
	if a.bundle.discoveryRefresh != nil {
		a.bundle.discoveryRefresh.Start(ctx)
	}

	addr := domain.HostPort(a.cfg.Server.Host, a.cfg.Server.Port)
	a.server = newHTTPServer(addr, a.cfg, a.service, a.log)

	ln, err := listen(addr)
	if err != nil {
		return fmt.Errorf("app: binding %s: %w", addr, err)
	}

	go func() {
		if err := a.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			a.log.Error("HTTP server stopped unexpectedly", "error", err)
		}
	}()

	a.log.Info("Listening", "address", addr)
	return nil
}

// Stop drains the inbound listener and stops background health
// checking, honouring ctx's deadline for graceful shutdown.
func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			firstErr = err
		}
	}
	if a.bundle.healthChecker != nil {
		if err := a.bundle.healthChecker.Stop(shutdownCtx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.bundle.discoveryRefresh != nil {
		a.bundle.discoveryRefresh.Stop()
	}
	if a.bundle.healthEvents != nil {
		a.bundle.healthEvents.Shutdown()
	}
	return firstErr
}

// SubscribeHealthEvents lets a caller (an admin surface, a future
// webhook) observe endpoint health transitions without polling the
// endpoint group. The returned cancel func unsubscribes.
func (a *Application) SubscribeHealthEvents(ctx context.Context) (<-chan EndpointHealthEvent, func()) {
	return a.bundle.healthEvents.Subscribe(ctx)
}
