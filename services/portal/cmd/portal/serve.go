package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"qualityportal/internal/util"
	"qualityportal/services/portal/internal/config"
	"qualityportal/services/portal/internal/server"
)

const (
	shutdownTimeout = 15 * time.Second
	janitorInterval = time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the portal web server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	cfg, a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return err
	}
	portal, err := server.New(server.Config{
		App:            a,
		TrustedProxies: trusted,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		FrameSources:   frameSources(cfg),
		CookieName:     cfg.SessionCookieName,
		CookieSecure:   cfg.SessionCookieSecure,
	})
	if err != nil {
		return err
	}

	go a.RunJanitor(ctx, janitorInterval)

	addr := ":" + cfg.Port
	// Uploads and progress sockets outlive the usual write timeout.
	srv := &http.Server{
		Addr:              addr,
		Handler:           portal.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr, "base_url", cfg.BaseURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// frameSources lists the origins the document viewer may embed.
func frameSources(cfg config.FileConfig) []string {
	var out []string
	if cfg.BaseURL != "" {
		out = append(out, cfg.BaseURL)
	}
	if cfg.MinioEndpoint != "" {
		scheme := "http://"
		if cfg.MinioUseSSL {
			scheme = "https://"
		}
		out = append(out, scheme+strings.TrimRight(cfg.MinioEndpoint, "/"))
	}
	if cfg.MinioPublicBaseURL != "" {
		out = append(out, cfg.MinioPublicBaseURL)
	}
	return out
}
