package bootstrap

import (
	"fmt"

	"github.com/jonesrussell/north-cloud/curator/internal/config"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

// CommandDeps holds the dependencies every command starts from.
type CommandDeps struct {
	Config *config.Config
	Logger logger.Logger
}

// NewCommandDeps loads configuration and builds the logger.
func NewCommandDeps(configPath string) (*CommandDeps, error) {
	cfg, err := config.Load(config.Path(configPath))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return &CommandDeps{
		Config: cfg,
		Logger: log.With(logger.String("service", "curator")),
	}, nil
}
