package constants

const (
	DefaultHealthCheckEndpoint = "/internal/health"
)
