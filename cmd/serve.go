package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/treewatch/internal/dashboard"
	"github.com/ziadkadry99/treewatch/internal/render"
	"github.com/ziadkadry99/treewatch/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the browser dashboard",
	Long: `Connects to the search backend and serves a dashboard that draws the
live tree, inspects nodes and starts runs. Prometheus metrics are exposed on
/metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "port to listen on (overrides dashboard.port)")
	serveCmd.Flags().Bool("log-ops", false, "also log every render operation")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	logOps, _ := cmd.Flags().GetBool("log-ops")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Dashboard.Port
	}

	logger, closer, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	hub := dashboard.NewHub(logger)
	var sink render.Sink = hub
	if logOps {
		sink = render.Fanout{hub, render.LogSink{Logger: logger}}
	}

	sess, err := newSession(cfg, logger, sink)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess.Start(ctx)
	defer sess.Stop()

	dash := dashboard.New(sess, hub, logger)
	defer dash.Close()

	srv := server.New(server.Config{
		Port:     port,
		AllowAll: cfg.Dashboard.AllowAll,
	}, logger)
	dash.RegisterRoutes(srv.Router())

	// Graceful shutdown.
	go func() {
		<-ctx.Done()
		logger.Info().Msg("Shutting down dashboard")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(os.Stderr, "treewatch %s dashboard on http://localhost:%d\n", Version, port)
	fmt.Fprintf(os.Stderr, "  Backend: %s\n", cfg.BackendURL)
	fmt.Fprintf(os.Stderr, "  Mode: %s\n", cfg.Mode)

	return srv.Start()
}
