package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/ziadkadry99/treewatch/internal/config"
	"github.com/ziadkadry99/treewatch/internal/dataset"
	"github.com/ziadkadry99/treewatch/internal/logging"
	"github.com/ziadkadry99/treewatch/internal/protocol"
	"github.com/ziadkadry99/treewatch/internal/render"
	"github.com/ziadkadry99/treewatch/internal/session"
	"github.com/ziadkadry99/treewatch/internal/store"
	"github.com/ziadkadry99/treewatch/internal/transport"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `treewatch init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the root logger from config and flags. The terminal UI
// passes quiet so log lines never reach the screen; they go to the log
// file when one is configured.
func newLogger(cfg *config.Config, quiet bool) (zerolog.Logger, io.Closer, error) {
	opts := logging.Options{
		Level:   cfg.Log.Level,
		JSON:    cfg.Log.Format == config.LogJSON,
		File:    cfg.Log.File,
		Discard: quiet,
	}
	if verbose {
		opts.Level = "debug"
	}
	if logFormat != "" {
		opts.JSON = logFormat == string(config.LogJSON)
	}
	if logFile != "" {
		opts.File = logFile
	}
	return logging.New(opts)
}

func newDatasetClient(cfg *config.Config) (*dataset.Client, error) {
	timing, err := cfg.Timing()
	if err != nil {
		return nil, err
	}
	return dataset.NewClient(cfg.HTTPURL, timing.RequestTimeout), nil
}

// datasetLoader adapts the HTTP client to the session's loader.
type datasetLoader struct {
	client *dataset.Client
}

func (l datasetLoader) Load(ctx context.Context) (dataset.Summary, error) {
	s, err := l.client.Load(ctx)
	if err != nil {
		return dataset.Summary{}, err
	}
	return *s, nil
}

// newSession builds a stopped session from config. A nil sink logs render
// batches.
func newSession(cfg *config.Config, logger zerolog.Logger, sink render.Sink) (*session.Service, error) {
	timing, err := cfg.Timing()
	if err != nil {
		return nil, err
	}
	client, err := newDatasetClient(cfg)
	if err != nil {
		return nil, err
	}

	mode := protocol.RequestAsk
	if cfg.Mode == config.ModeDiscover {
		mode = protocol.RequestDiscover
	}

	opts := session.Options{
		Transport: transport.Options{
			URL:               cfg.BackendURL,
			HeartbeatInterval: timing.HeartbeatInterval,
			SendRetryDelay:    timing.SendRetryDelay,
			ReconnectBase:     timing.ReconnectBase,
			ReconnectCap:      timing.ReconnectCap,
			MaxAttempts:       cfg.Reconnect.MaxAttempts,
		},
		Mode:                     mode,
		MaxIterations:            cfg.MaxIterations,
		MaxDepth:                 cfg.MaxDepth,
		VideoIDs:                 cfg.VideoIDs,
		StructuralErrorThreshold: cfg.StructuralErrorThreshold,
	}
	return session.New(opts, session.Deps{
		Sink:    sink,
		Dataset: datasetLoader{client: client},
		Logger:  logger,
	}), nil
}

// waitConnected blocks until the backend connection is open. It fails
// when the session gives up reconnecting.
func waitConnected(ctx context.Context, sess *session.Service) error {
	ready := make(chan error, 1)
	unsubscribe := sess.Subscribe(func(st store.State) {
		var err error
		switch {
		case st.Connected:
		case st.Error != "":
			err = errors.New(st.Error)
		default:
			return
		}
		select {
		case ready <- err:
		default:
		}
	})
	defer unsubscribe()

	if sess.Connected() {
		return nil
	}
	select {
	case err := <-ready:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for backend connection: %w", ctx.Err())
	}
}
