package socket

import "github.com/joelguittet/go-axon/internal/definition"

// Logger is the logging surface an Endpoint depends on. It is a type
// alias for the internal definition so callers can implement their own
// without reaching into an internal package.
type Logger = definition.Logger

// Option configures an Endpoint at construction time.
type Option func(*config)

type config struct {
	logger    Logger
	onBind    BindFunc
	onMessage MessageFunc
	onError   ErrorFunc
}

func defaultConfig() *config {
	return &config{
		logger: definition.NewDefaultLogger(),
	}
}

// WithLogger replaces the default logrus-backed logger.
func WithLogger(l Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithBind registers the endpoint's bind callback at construction time,
// equivalent to calling OnBind after New.
func WithBind(f BindFunc) Option {
	return func(c *config) { c.onBind = f }
}

// WithMessage registers the endpoint's message callback at construction
// time, equivalent to calling OnMessage after New.
func WithMessage(f MessageFunc) Option {
	return func(c *config) { c.onMessage = f }
}

// WithError registers the endpoint's error callback at construction
// time, equivalent to calling OnError after New.
func WithError(f ErrorFunc) Option {
	return func(c *config) { c.onError = f }
}
