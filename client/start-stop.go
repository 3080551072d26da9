package client

// RunStop is an interface that implements the Run() and Stop() methods.
// Bus clients, the GPS source, and the embedded NATS server all follow it.
// Stop() may get called after Run() has exited when using run.Group, so
// Stop() must never block.
type RunStop interface {
	Run() error
	Stop(error)
}
