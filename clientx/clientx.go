// Package clientx builds HTTP clients with retry and circuit breaking.
//
// Overview:
//   - Responsibility: Construct *http.Client values for outbound calls
//   - Key Types: Options, Option, RetryTransport (internal)
//   - Concurrency Model: Returned clients are safe for concurrent use
//   - Error Semantics: An open circuit surfaces as ErrCircuitOpen from Do
//   - Performance Notes: Exponential backoff between retries, context aware
//
// Usage:
//
//	client := clientx.NewHTTPClient(
//	  clientx.WithTimeout(10*time.Second),
//	  clientx.WithRetry(0),
//	  clientx.WithFailureStatus(http.StatusBadRequest),
//	)
package clientx

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"go.eggybyte.com/egg/workerkit/clientx/internal"
)

// ErrCircuitOpen is returned (wrapped in *url.Error) once the breaker has tripped.
var ErrCircuitOpen = gobreaker.ErrOpenState

// Options configures the HTTP client.
type Options struct {
	Name             string            // Breaker name (default: "workerkit-client")
	Timeout          time.Duration     // Per-request timeout (default: 30s)
	MaxRetries       int               // Retries for transport errors and 5xx (default: 3)
	RetryBackoff     time.Duration     // Initial backoff (default: 100ms)
	EnableCircuit    bool              // Enable the circuit breaker (default: true)
	CircuitThreshold uint32            // Consecutive failures that open the circuit (default: 5)
	FailureStatus    int               // Status codes at or above this count as failures (default: 500)
	Transport        http.RoundTripper // Base transport (default: http.DefaultTransport)
}

// Option is a functional option for the client.
type Option func(*Options)

// WithTimeout sets the client timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithRetry sets the maximum retry attempts.
func WithRetry(maxRetries int) Option {
	return func(o *Options) {
		o.MaxRetries = maxRetries
	}
}

// WithBackoff sets the initial retry backoff.
func WithBackoff(d time.Duration) Option {
	return func(o *Options) {
		o.RetryBackoff = d
	}
}

// WithCircuitBreaker enables or disables the circuit breaker.
func WithCircuitBreaker(enabled bool) Option {
	return func(o *Options) {
		o.EnableCircuit = enabled
	}
}

// WithCircuitThreshold sets how many consecutive failures open the circuit.
func WithCircuitThreshold(n uint32) Option {
	return func(o *Options) {
		o.CircuitThreshold = n
	}
}

// WithFailureStatus sets the lowest status code counted as a breaker failure.
func WithFailureStatus(code int) Option {
	return func(o *Options) {
		o.FailureStatus = code
	}
}

// WithTransport sets the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *Options) {
		o.Transport = rt
	}
}

// WithName sets the breaker name.
func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

// NewHTTPClient creates an HTTP client with retry and circuit breaker.
func NewHTTPClient(opts ...Option) *http.Client {
	options := Options{
		Name:             "workerkit-client",
		Timeout:          30 * time.Second,
		MaxRetries:       3,
		RetryBackoff:     100 * time.Millisecond,
		EnableCircuit:    true,
		CircuitThreshold: 5,
		FailureStatus:    http.StatusInternalServerError,
	}
	for _, opt := range opts {
		opt(&options)
	}

	var cb *gobreaker.CircuitBreaker
	if options.EnableCircuit {
		threshold := options.CircuitThreshold
		if threshold == 0 {
			threshold = 1
		}
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        options.Name,
			MaxRequests: 1,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
		})
	}

	return &http.Client{
		Timeout: options.Timeout,
		Transport: internal.NewRetryTransport(
			options.Transport,
			options.MaxRetries,
			options.RetryBackoff,
			options.FailureStatus,
			cb,
		),
	}
}
