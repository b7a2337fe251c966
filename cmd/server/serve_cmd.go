package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/samibismar/calmclinic.health-sub001/internal/api"
	"github.com/samibismar/calmclinic.health-sub001/internal/auth"
	"github.com/samibismar/calmclinic.health-sub001/internal/metrics"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			a.cache.Start(a.cfg.Cache.SweepInterval)

			r := mux.NewRouter()
			metrics.Register(r, "")
			handler := api.NewHandler(a.store, a.router, a.analyzer, a.limiter, api.Options{
				JWTSecret:        a.cfg.JWTSecret,
				TokenTTL:         a.cfg.TokenTTL,
				DefaultRateLimit: a.cfg.RateLimitPerHour,
			})
			handler.RegisterRoutes(r, auth.NewMiddleware(a.cfg.JWTSecret, a.cfg.AdminToken))
			if a.cfg.AdminToken == "" {
				log.Warn().Msg("⚠️ ADMIN_TOKEN not set, admin routes are unauthenticated")
			}

			srv := &http.Server{
				Addr:              ":" + a.cfg.ServerPort,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("port", a.cfg.ServerPort).Msg("🚀 server starting")
				log.Info().Msg("Chat API available at /api/chat, admin API at /admin/*")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info().Msg("🛑 shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
