package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"biblio/internal/handlers"
	"biblio/internal/repositories"
	"biblio/internal/services"
)

func newServeCommand() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.cfg.ValidateServer(); err != nil {
				return err
			}
			return serve(cmd.Context(), a, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "migrate the schema before serving")
	return cmd
}

func serve(ctx context.Context, a *app, migrate bool) error {
	if migrate {
		if err := repositories.Migrate(a.db); err != nil {
			return err
		}
	}
	if err := a.auth.EnsureDefaultAdmin(ctx, services.AdminAccount{
		Username: a.cfg.AdminUsername,
		Email:    a.cfg.AdminEmail,
		Password: a.cfg.AdminPassword,
	}); err != nil {
		return err
	}
	if a.cfg.AuthDisabled {
		a.logger.Warn("authentication disabled")
	}

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.RouterConfig{
		CORSOrigin:   a.cfg.CORSOrigin,
		AuthDisabled: a.cfg.AuthDisabled,
		Gatherer:     a.registry,
		Logger:       a.logger,
	}, handlers.Services{
		Books:        a.books,
		Clients:      a.clients,
		Reservations: a.reservations,
		Auth:         a.auth,
	})

	srv := &http.Server{
		Addr:         a.cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting server", zap.String("addr", a.cfg.ServerAddr))
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

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
