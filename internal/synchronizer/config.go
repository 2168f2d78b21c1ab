package synchronizer

import (
	"go.eggybyte.com/egg/workerkit/configx"
)

// Config describes where workers live, which document they are synced into
// and how each entry is rendered. Keys in `env` tags are the flattened names
// used by configuration files, WORKERKIT_* variables and flags.
type Config struct {
	RootMarkerFile string `env:"ROOT_MARKER_FILE" default:"pyproject.toml" validate:"required"`
	SourceRoot     string `env:"COMPOSE_SOURCE_ROOT" default:"src/workers" validate:"required"`
	DocumentPath   string `env:"COMPOSE_DOCUMENT" default:"docker-compose.yml" validate:"required"`
	EntriesKey     string `env:"COMPOSE_ENTRIES_KEY" default:"services" validate:"required"`
	NetworksKey    string `env:"COMPOSE_NETWORKS_KEY" default:"networks" validate:"required"`
	Marker         string `env:"WORKER_MARKER" default:"__name__ == \"__main__\"" validate:"required"`
	Extension      string `env:"WORKER_EXTENSION" default:".py" validate:"required,startswith=."`

	// GroupDepth selects the ancestor directory used as the key prefix;
	// 1 is the directory containing the file.
	GroupDepth int  `env:"COMPOSE_GROUP_DEPTH" default:"1" validate:"min=1"`
	Strict     bool `env:"COMPOSE_STRICT" default:"false"`

	EntryPoint     EntryPoint
	DefaultNetwork Network
	Template       Template
}

// EntryPoint is the optional application service added before the workers.
// It is added only when GuardDir exists; an empty Path disables it.
type EntryPoint struct {
	Path     string   `env:"COMPOSE_ENTRY_POINT_PATH" default:"src/__main__.py"`
	GuardDir string   `env:"COMPOSE_ENTRY_POINT_GUARD_DIR" default:"src/api"`
	Suffix   string   `env:"COMPOSE_ENTRY_POINT_SUFFIX" default:"api" validate:"required_with=Path"`
	Args     []string `env:"COMPOSE_ENTRY_POINT_ARGS" default:"--run=api"`
}

// Network is the network section inserted into documents that have none.
type Network struct {
	Name     string `env:"COMPOSE_NETWORK_NAME" default:"net" validate:"required"`
	External bool   `env:"COMPOSE_NETWORK_EXTERNAL" default:"true"`
}

// Template holds the fixed parts of every generated entry. An empty Image
// means the project name; empty Networks means the default network.
type Template struct {
	Image        string   `env:"COMPOSE_IMAGE"`
	BuildContext string   `env:"COMPOSE_BUILD_CONTEXT" default:"." validate:"required"`
	Dockerfile   string   `env:"COMPOSE_DOCKERFILE" default:"Dockerfile" validate:"required"`
	Launcher     string   `env:"COMPOSE_LAUNCHER" default:"PYTHONPATH=/application poetry run python -u" validate:"required"`
	Restart      string   `env:"COMPOSE_RESTART" default:"always" validate:"oneof=no always on-failure unless-stopped"`
	Volumes      []string `env:"COMPOSE_VOLUMES" default:"./src:/application/src"`
	EnvFiles     []string `env:"COMPOSE_ENV_FILES" default:".env"`
	LogMaxSize   string   `env:"COMPOSE_LOG_MAX_SIZE" default:"10m"`
	Networks     []string `env:"COMPOSE_NETWORKS"`
}

// DefaultConfig returns the configuration built from the `default` tags.
func DefaultConfig() Config {
	var cfg Config
	// Every default is a valid literal for its field type.
	_ = configx.Bind(map[string]string{}, &cfg)
	return cfg
}

// Validate checks cfg against its `validate` tags.
func (c Config) Validate() error {
	return configx.ValidateStruct(nil, &c)
}
