package main

import (
	"fmt"
	"io"

	"github.com/odvcencio/gitsink/pkg/config"
	"github.com/odvcencio/gitsink/pkg/repo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	workers    int
	logLevel   string
	gitDir     string
}

func (g *globalFlags) register(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", config.DefaultPath(), "path to the TOML config file")
	pf.IntVar(&g.workers, "workers", 0, "concurrent object writes (overrides config)")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")
	pf.StringVar(&g.gitDir, "git-dir", ".", "bare repository to inspect")
}

// settings loads the config file and applies flag overrides.
func (g *globalFlags) settings(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = g.workers
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	level, err := cfg.Level()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, newLogger(cmd.ErrOrStderr(), level), nil
}

// openRepo opens the repository named by --git-dir.
func (g *globalFlags) openRepo(cmd *cobra.Command) (*repo.Repo, error) {
	_, logger, err := g.settings(cmd)
	if err != nil {
		return nil, err
	}
	r, err := repo.Open(g.gitDir, repo.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return r, nil
}

func newLogger(w io.Writer, level zapcore.Level) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	return zap.New(
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(zapcore.AddSync(w)),
			zap.NewAtomicLevelAt(level),
		),
	)
}
