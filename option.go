package x402secure

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vitwit/x402-secure/gateway"
	"github.com/vitwit/x402-secure/logger"
	"github.com/vitwit/x402-secure/metrics"
)

// Option configures a client at construction time.
type Option func(*clientOptions)

type clientOptions struct {
	logger     logger.Logger
	metrics    metrics.Recorder
	httpClient gateway.Doer
	timeout    time.Duration
	tracing    bool
}

func WithLogger(l logger.Logger) Option {
	return func(o *clientOptions) {
		o.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(o *clientOptions) {
		o.metrics = r
	}
}

// WithHTTPClient injects the HTTP transport. Used by tests to
// substitute a double; *http.Client satisfies gateway.Doer.
func WithHTTPClient(d gateway.Doer) Option {
	return func(o *clientOptions) {
		o.httpClient = d
	}
}

// WithTimeout bounds each HTTP exchange. Ignored when a client is
// injected with WithHTTPClient; that client owns its own timeout.
func WithTimeout(t time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = t
	}
}

// WithTracing instruments the default HTTP transport with otelhttp so
// every gateway call produces a client span and propagates context.
func WithTracing() Option {
	return func(o *clientOptions) {
		o.tracing = true
	}
}

// buildOptions resolves options over baseTimeout (the config-supplied
// timeout; WithTimeout wins over it).
func buildOptions(opts []Option, baseTimeout time.Duration) clientOptions {
	o := clientOptions{timeout: baseTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = logger.NoopLogger{}
	}
	if o.metrics == nil {
		o.metrics = metrics.NoopRecorder{}
	}
	if o.timeout <= 0 {
		o.timeout = gateway.DefaultTimeout
	}
	if o.httpClient == nil {
		client := &http.Client{Timeout: o.timeout}
		if o.tracing {
			client.Transport = otelhttp.NewTransport(http.DefaultTransport)
		}
		o.httpClient = client
	}
	return o
}
