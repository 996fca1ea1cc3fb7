// Package serve starts the dashboard web server and wires the
// application services together.
package serve

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/renalscan/renalscan-go/internal/apiclient"
	"github.com/renalscan/renalscan-go/internal/conf"
	"github.com/renalscan/renalscan-go/internal/datastore"
	"github.com/renalscan/renalscan-go/internal/history"
	"github.com/renalscan/renalscan-go/internal/logging"
	"github.com/renalscan/renalscan-go/internal/notification"
	"github.com/renalscan/renalscan-go/internal/observability"
	"github.com/renalscan/renalscan-go/internal/server"
	"github.com/renalscan/renalscan-go/internal/session"
	"github.com/renalscan/renalscan-go/internal/workflow"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard web server",
		Long:  "Serve the dashboard pages and JSON API, talking to the configured collaborator services.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}
	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Host, "host", viper.GetString("webserver.host"), "Interface to listen on")
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port to listen on")
	cmd.Flags().StringVar(&settings.Collaborators.Auth.BaseURL, "auth-url", viper.GetString("collaborators.auth.baseurl"), "Authentication service base URL")
	cmd.Flags().StringVar(&settings.Collaborators.Detection.BaseURL, "detection-url", viper.GetString("collaborators.detection.baseurl"), "Detection service base URL")
	cmd.Flags().StringVar(&settings.Collaborators.Inference.BaseURL, "inference-url", viper.GetString("collaborators.inference.baseurl"), "Tabular inference service base URL")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func run(cmd *cobra.Command, settings *conf.Settings) error {
	log := logging.ForService("serve")

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	notifier := notification.NewService(nil)
	defer notifier.Stop()

	client, err := apiclient.New(&apiclient.Config{
		AuthBaseURL:      settings.Collaborators.Auth.BaseURL,
		DetectionBaseURL: settings.Collaborators.Detection.BaseURL,
		InferenceBaseURL: settings.Collaborators.Inference.BaseURL,
		DefaultTimeout:   maxTimeout(settings),
	}, metrics)
	if err != nil {
		return err
	}

	store := session.NewStore(client, notifier, metrics)
	client.SetUnauthorizedHandler(store.ForceLogout)

	ds := datastore.New(settings)
	if ds != nil {
		if err := ds.Open(); err != nil {
			log.Warn("history mirror unavailable, continuing without it", "error", err)
			ds = nil
		} else {
			defer func() { _ = ds.Close() }()
		}
	}

	hist := history.New(client, ds, settings.Cache.TTL, settings.Cache.CleanupInterval, metrics)
	task := workflow.NewUploadTask(client, hist, notifier, metrics)

	srv, err := server.New(settings, store, hist, task, notifier, metrics)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting dashboard",
		"version", settings.Version,
		"host", settings.WebServer.Host,
		"port", settings.WebServer.Port)
	return srv.Start(ctx)
}

// maxTimeout picks the most generous collaborator timeout as the client
// default; per-request contexts can always tighten it.
func maxTimeout(settings *conf.Settings) time.Duration {
	timeout := settings.Collaborators.Auth.Timeout
	if t := settings.Collaborators.Detection.Timeout; t > timeout {
		timeout = t
	}
	if t := settings.Collaborators.Inference.Timeout; t > timeout {
		timeout = t
	}
	return timeout
}
