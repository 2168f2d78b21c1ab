package civars

import (
	"time"

	"go.eggybyte.com/egg/workerkit/configx"
)

// Config identifies the CI settings page and the browser session used to
// write to it. Host may be a bare host name or a base URL; https is assumed
// when no scheme is given.
type Config struct {
	Host      string `env:"CI_HOST" validate:"required"`
	Group     string `env:"CI_GROUP" validate:"required"`
	Project   string `env:"CI_PROJECT" validate:"required"`
	CSRFToken string `env:"CI_CSRF_TOKEN" validate:"required"`
	Session   string `env:"CI_SESSION" validate:"required"`

	EnvFile          string `env:"CI_ENV_FILE" default:".env" validate:"required"`
	Prefix           string `env:"CI_PREFIX" default:"APP_"`
	EnvironmentScope string `env:"CI_ENVIRONMENT_SCOPE" default:"*" validate:"required"`
	Protected        bool   `env:"CI_PROTECTED" default:"true"`
	Masked           bool   `env:"CI_MASKED" default:"false"`
	Hidden           bool   `env:"CI_HIDDEN" default:"false"`
	Raw              bool   `env:"CI_RAW" default:"false"`
	UserAgent        string `env:"CI_USER_AGENT" default:"Mozilla/5.0 (X11; Linux x86_64; rv:139.0) Gecko/20100101 Firefox/139.0"`

	Timeout          time.Duration `env:"CI_TIMEOUT" default:"30s" validate:"min=0"`
	MaxRetries       int           `env:"CI_MAX_RETRIES" default:"0" validate:"min=0,max=10"`
	CircuitThreshold uint32        `env:"CI_CIRCUIT_THRESHOLD" default:"5" validate:"min=1"`
}

// DefaultConfig returns the configuration built from the `default` tags.
// The connection fields are left empty.
func DefaultConfig() Config {
	var cfg Config
	_ = configx.Bind(map[string]string{}, &cfg)
	return cfg
}

// Validate checks cfg against its `validate` tags.
func (c Config) Validate() error {
	return configx.ValidateStruct(nil, &c)
}
