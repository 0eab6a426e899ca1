package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"kobomedia/pkg/auth"
	"kobomedia/pkg/config"
	"kobomedia/pkg/dashboard"
	"kobomedia/pkg/harvester"
	"kobomedia/pkg/history"
	"kobomedia/pkg/kobo"
	"kobomedia/pkg/logger"
	"kobomedia/pkg/metrics"
	"kobomedia/pkg/publish"
	"kobomedia/pkg/retry"
	"kobomedia/pkg/ui"
)

// collectFlags returns the flags set explicitly on the command line, keyed
// by flag name, so that they override every other configuration source
func collectFlags(fs *pflag.FlagSet) map[string]interface{} {
	flags := make(map[string]interface{})
	fs.Visit(func(f *pflag.Flag) {
		var (
			v   interface{}
			err error
		)
		switch f.Value.Type() {
		case "string":
			v, err = fs.GetString(f.Name)
		case "int":
			v, err = fs.GetInt(f.Name)
		case "float64":
			v, err = fs.GetFloat64(f.Name)
		case "bool":
			v, err = fs.GetBool(f.Name)
		default:
			return
		}
		if err == nil {
			flags[f.Name] = v
		}
	})
	return flags
}

// loadConfig loads the configuration and initializes logging and colors
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, settingsFile, collectFlags(cmd.Flags()))
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if noColor {
		ui.SetColor(false)
	}

	resolveToken(cfg)
	return cfg, nil
}

// resolveToken falls back to the token stored by 'kobomedia auth login'
func resolveToken(cfg *config.Config) {
	if cfg.Kobo.Token != "" {
		return
	}
	manager, err := auth.OpenManager()
	if err != nil {
		logger.GetLogger().WithError(err).Debug("credential store unavailable")
		return
	}
	token, err := manager.Token(cfg.Kobo.KFURL)
	if err != nil {
		logger.GetLogger().WithField("server", cfg.Kobo.KFURL).Debug("no stored token")
		return
	}
	cfg.Kobo.Token = token
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// app bundles the collaborators of a harvester built from configuration
type app struct {
	cfg       *config.Config
	log       logger.Logger
	client    *kobo.Client
	metrics   *metrics.Metrics
	history   *history.Store
	harvester *harvester.Harvester
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.GetLogger()

	client := kobo.NewClient(cfg.Kobo.Token, cfg.Download.Timeout(), log)
	if cfg.Retry.MaxAttempts > 1 {
		client.SetRetry(retry.NewConfig(cfg.Retry.MaxAttempts, seconds(cfg.Retry.BaseDelay), seconds(cfg.Retry.MaxDelay), log))
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		client:  client,
		metrics: metrics.New(),
	}
	a.harvester = harvester.New(client, cfg, log)
	a.harvester.SetMetrics(a.metrics)

	if cfg.Publish.S3.Enabled() {
		publisher, err := publish.NewS3Publisher(ctx, cfg.Publish.S3, cfg.Retry.MaxAttempts, log)
		if err != nil {
			return nil, fmt.Errorf("failed to configure S3 publishing: %w", err)
		}
		a.harvester.SetPublisher(publisher)
	}

	if cfg.History.Enabled {
		store, err := openHistory(cfg)
		if err != nil {
			log.WithError(err).Warn("run history disabled")
		} else {
			a.history = store
			a.harvester.SetHistory(store)
		}
	}

	return a, nil
}

func openHistory(cfg *config.Config) (*history.Store, error) {
	path := cfg.History.Path
	if path == "" {
		var err error
		if path, err = history.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return history.Open(path)
}

// runs returns the history store as a lister, or nil when history is off
func (a *app) runs() dashboard.RunLister {
	if a.history == nil {
		return nil
	}
	return a.history
}

func (a *app) Close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.log.WithError(err).Warn("failed to close history store")
		}
	}
}
