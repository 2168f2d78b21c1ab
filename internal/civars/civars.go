// Package civars pushes the variables of a local env file to GitLab CI settings.
//
// Overview:
//   - Responsibility: One authenticated PATCH per variable against the project's -/variables endpoint
//   - Key Types: Uploader, Config, Report, Failure
//   - Concurrency Model: Variables are sent sequentially in file order
//   - Error Semantics: A rejected variable is recorded in the Report and the run goes on;
//     an open circuit or a cancelled context stops the run with ABORTED
//   - Performance Notes: No retries by default; the breaker bounds a run with an expired session
//
// Usage:
//
//	up, err := civars.New(cfg, logger)
//	report, err := up.UploadFile(ctx)
package civars

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.eggybyte.com/egg/workerkit/clientx"
	"go.eggybyte.com/egg/workerkit/core/errors"
	"go.eggybyte.com/egg/workerkit/core/log"
	"go.eggybyte.com/egg/workerkit/internal/envloader"
)

// maxErrorBody bounds how much of a rejected response is kept.
const maxErrorBody = 64 << 10

// Report lists the outcome of every variable in file order.
type Report struct {
	Created []string  // Prefixed keys accepted with HTTP 200
	Failed  []Failure // Rejected or unsent variables
	Skipped []string  // Prefixed keys not attempted after the run was stopped
}

// Failure describes one variable that was not created.
type Failure struct {
	Key    string
	Status int    // 0 when no response was received
	Body   string // Response body, truncated
	Err    error  // Transport error, nil when a response was received
}

// Error implements the error interface.
func (f Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Key, f.Err)
	}
	return fmt.Sprintf("%s: status %d: %s", f.Key, f.Status, f.Body)
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithHTTPClient replaces the default resilient client.
func WithHTTPClient(c *http.Client) Option {
	return func(u *Uploader) {
		u.client = c
	}
}

// WithTransport keeps the default client but sends requests through rt.
func WithTransport(rt http.RoundTripper) Option {
	return func(u *Uploader) {
		u.transport = rt
	}
}

// Uploader creates CI variables through the settings endpoint.
type Uploader struct {
	cfg       Config
	logger    log.Logger
	client    *http.Client
	transport http.RoundTripper
	base      *url.URL
}

// New validates cfg and creates an Uploader.
//
// Parameters:
//   - cfg: Connection and variable settings
//   - logger: Structured logger (nil discards)
//   - opts: Client overrides, mostly for tests
//
// Returns:
//   - *Uploader: Ready to upload
//   - error: INVALID_ARGUMENT for an invalid configuration or host
//
// Concurrency:
//   - Upload must not be called concurrently on one Uploader
//
// Performance:
//   - Builds one HTTP client
func New(cfg Config, logger log.Logger, opts ...Option) (*Uploader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(errors.CodeInvalidArgument, "ci-vars config", err)
	}
	base, err := parseHost(cfg.Host)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInvalidArgument, "ci-vars config", err)
	}

	u := &Uploader{cfg: cfg, logger: log.OrNop(logger), base: base}
	for _, opt := range opts {
		opt(u)
	}
	if u.client == nil {
		u.client = clientx.NewHTTPClient(
			clientx.WithName("ci-vars"),
			clientx.WithTimeout(cfg.Timeout),
			clientx.WithRetry(cfg.MaxRetries),
			clientx.WithCircuitThreshold(cfg.CircuitThreshold),
			clientx.WithFailureStatus(http.StatusBadRequest),
			clientx.WithTransport(u.transport),
		)
	}
	return u, nil
}

func parseHost(host string) (*url.URL, error) {
	host = strings.TrimSpace(host)
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	base, err := url.Parse(strings.TrimRight(host, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid host %q: %w", host, err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("invalid host %q: no host name", host)
	}
	return base, nil
}

// Endpoint returns the variables endpoint of the configured project.
func (u *Uploader) Endpoint() string {
	return u.projectURL("-/variables")
}

func (u *Uploader) projectURL(suffix string) string {
	return u.base.JoinPath(u.cfg.Group, u.cfg.Project, suffix).String()
}

// UploadFile uploads every variable of the configured env file.
func (u *Uploader) UploadFile(ctx context.Context) (*Report, error) {
	vars, err := envloader.LoadEnvFile(u.cfg.EnvFile)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInvalidArgument, "read env file", err)
	}
	return u.Upload(ctx, vars)
}

// Upload sends one request per variable, in order.
//
// Parameters:
//   - ctx: Cancels the remaining requests
//   - vars: Variables to create; keys are prefixed with Config.Prefix
//
// Returns:
//   - *Report: Outcome per variable, always non-nil
//   - error: ABORTED when the circuit opened or ctx was cancelled
//
// Concurrency:
//   - Sequential
//
// Performance:
//   - One HTTP round trip per variable
func (u *Uploader) Upload(ctx context.Context, vars []envloader.Var) (*Report, error) {
	report := &Report{}

	for i, v := range vars {
		key := u.cfg.Prefix + v.Key

		if err := ctx.Err(); err != nil {
			report.Skipped = append(report.Skipped, prefixed(u.cfg.Prefix, vars[i:])...)
			return report, errors.Wrap(errors.CodeAborted, "upload variables", err)
		}

		failure, err := u.create(ctx, key, v.Value)
		switch {
		case err != nil && errors.Is(err, clientx.ErrCircuitOpen):
			report.Skipped = append(report.Skipped, prefixed(u.cfg.Prefix, vars[i:])...)
			u.logger.Warn("circuit open, stopping upload", log.Int("remaining", len(vars)-i))
			return report, errors.Wrapf(errors.CodeAborted, "upload variables", err,
				"too many consecutive failures, check the session and CSRF token")
		case err != nil && ctx.Err() != nil:
			report.Skipped = append(report.Skipped, prefixed(u.cfg.Prefix, vars[i:])...)
			return report, errors.Wrap(errors.CodeAborted, "upload variables", ctx.Err())
		case failure != nil:
			report.Failed = append(report.Failed, *failure)
			u.logger.Warn("variable rejected", log.Str("key", key), log.Int("status", failure.Status))
		default:
			report.Created = append(report.Created, key)
			u.logger.Info("variable created", log.Str("key", key))
		}
	}
	return report, nil
}

func prefixed(prefix string, vars []envloader.Var) []string {
	keys := make([]string, len(vars))
	for i, v := range vars {
		keys[i] = prefix + v.Key
	}
	return keys
}

type variablesPayload struct {
	Attributes []variableAttributes `json:"variables_attributes"`
}

type variableAttributes struct {
	Description      *string `json:"description"`
	EnvironmentScope string  `json:"environment_scope"`
	Key              string  `json:"key"`
	Masked           bool    `json:"masked"`
	Hidden           bool    `json:"hidden"`
	Protected        bool    `json:"protected"`
	Raw              bool    `json:"raw"`
	Value            string  `json:"value"`
	VariableType     string  `json:"variable_type"`
	ID               *int64  `json:"id"`
	SecretValue      string  `json:"secret_value"`
	Destroy          bool    `json:"_destroy"`
}

// create sends one variable. A non-nil Failure means the server answered and
// refused; a non-nil error means the request itself did not complete, in
// which case a Failure is also returned unless the circuit is open.
func (u *Uploader) create(ctx context.Context, key, value string) (*Failure, error) {
	body, err := json.Marshal(variablesPayload{Attributes: []variableAttributes{{
		EnvironmentScope: u.cfg.EnvironmentScope,
		Key:              key,
		Masked:           u.cfg.Masked,
		Hidden:           u.cfg.Hidden,
		Protected:        u.cfg.Protected,
		Raw:              u.cfg.Raw,
		Value:            value,
		VariableType:     "env_var",
		SecretValue:      value,
	}}})
	if err != nil {
		return &Failure{Key: key, Err: err}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return &Failure{Key: key, Err: err}, nil
	}
	u.setHeaders(req)

	resp, err := u.client.Do(req)
	if err != nil {
		if errors.Is(err, clientx.ErrCircuitOpen) || ctx.Err() != nil {
			return nil, err
		}
		return &Failure{Key: key, Err: err}, nil
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode == http.StatusOK {
		return nil, nil
	}
	return &Failure{Key: key, Status: resp.StatusCode, Body: string(data)}, nil
}

func (u *Uploader) setHeaders(req *http.Request) {
	origin := u.base.Scheme + "://" + u.base.Host

	h := req.Header
	h.Set("User-Agent", u.cfg.UserAgent)
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", "en-US,en;q=0.5")
	h.Set("Content-Type", "application/json")
	h.Set("Referer", u.projectURL("-/settings/ci_cd"))
	h.Set("Origin", origin)
	h.Set("X-CSRF-Token", u.cfg.CSRFToken)
	h.Set("X-Requested-With", "XMLHttpRequest")
	h.Set("Cookie", "_gitlab_session="+u.cfg.Session+"; event_filter=all")
	h.Set("DNT", "1")
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("Pragma", "no-cache")
	h.Set("Cache-Control", "no-cache")
}
