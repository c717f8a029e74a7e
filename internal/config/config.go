package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port              int           `envconfig:"PORT" default:"8080"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat         string        `envconfig:"LOG_FORMAT" default:"json"`
	LogFile           string        `envconfig:"LOG_FILE" default:""`
	DatabaseURL       string        `envconfig:"DATABASE_URL" required:"true"`
	JWTSecret         string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL            time.Duration `envconfig:"JWT_TTL" default:"720h"`
	BcryptCost        int           `envconfig:"BCRYPT_COST" default:"12"`
	ProjectsDir       string        `envconfig:"PROJECTS_DIR" default:"./data/projects"`
	GitHubAPIURL      string        `envconfig:"GITHUB_API_URL" default:"https://api.github.com"`
	FigmaAPIURL       string        `envconfig:"FIGMA_API_URL" default:"https://api.figma.com"`
	HTTPClientTimeout time.Duration `envconfig:"HTTP_CLIENT_TIMEOUT" default:"30s"`
	SyncInterval      time.Duration `envconfig:"SYNC_INTERVAL" default:"0s"`
	BuiltinKitsPath   string        `envconfig:"BUILTIN_KITS_PATH" default:""`
	Version           string        `envconfig:"VERSION" default:"dev"`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
