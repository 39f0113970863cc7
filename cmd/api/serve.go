package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/handler"
	clinicHandler "github.com/jwalitptl/clinic-api/internal/handler/clinic"
	invoiceHandler "github.com/jwalitptl/clinic-api/internal/handler/invoice"
	opdHandler "github.com/jwalitptl/clinic-api/internal/handler/opd"
	patientHandler "github.com/jwalitptl/clinic-api/internal/handler/patient"
	permissionHandler "github.com/jwalitptl/clinic-api/internal/handler/permission"
	userHandler "github.com/jwalitptl/clinic-api/internal/handler/user"
	visitHandler "github.com/jwalitptl/clinic-api/internal/handler/visit"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/router"
	"github.com/jwalitptl/clinic-api/internal/service/billing"
	"github.com/jwalitptl/clinic-api/internal/service/clinic"
	"github.com/jwalitptl/clinic-api/internal/service/code"
	"github.com/jwalitptl/clinic-api/internal/service/patient"
	"github.com/jwalitptl/clinic-api/internal/service/permission"
	"github.com/jwalitptl/clinic-api/internal/service/queue"
	"github.com/jwalitptl/clinic-api/internal/service/user"
	"github.com/jwalitptl/clinic-api/internal/service/visit"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

func serveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := openStore(cfg.Database, log)
			if err != nil {
				return err
			}
			defer store.Close()

			reg, m := newRegistry(cfg.Metrics, "api")

			// Services
			alloc := code.NewAllocator(store, cfg.Codes.MaxAttempts, log, m)
			perms := permission.NewService(store, m)
			users := user.NewService(store, alloc, security.NewBcryptHasher(bcrypt.DefaultCost), email.New(cfg.Mail, log), log)
			clinics := clinic.NewService(store, alloc, users, log)
			queueSvc := queue.NewService(store, log, m)
			patients := patient.NewService(store, alloc)
			invoices := billing.NewService(store, alloc)
			visits := visit.NewService(store)

			// HTTP
			authMW := middleware.NewAuthMiddleware(auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer), users, perms, cfg.Auth.CacheTTL)
			r, err := router.NewRouter(authMW, handler.NewHandler(store, reg), []router.Handler{
				opdHandler.NewHandler(queueSvc, authMW),
				permissionHandler.NewHandler(perms, authMW),
				userHandler.NewHandler(users, authMW),
				clinicHandler.NewHandler(clinics, authMW),
				patientHandler.NewHandler(patients, authMW),
				invoiceHandler.NewHandler(invoices, authMW),
				visitHandler.NewHandler(visits, authMW),
			}, router.RouterConfig{
				Mode:          cfg.Server.Mode,
				RateLimit:     rate.Limit(cfg.RateLimit.RequestsPerSecond),
				RateBurst:     cfg.RateLimit.Burst,
				MetricsPrefix: cfg.Metrics.Namespace,
				Registerer:    reg,
				Logger:        log,
			})
			if err != nil {
				return err
			}

			if cfg.Outbox.Enabled {
				broker, err := newBroker(cfg.Redis, log)
				if err != nil {
					return err
				}
				defer broker.Close()
				go newOutboxProcessor(cfg.Outbox, store, broker, log, m).Start(ctx)
			}

			timeout := time.Duration(cfg.Server.TimeoutSeconds) * time.Second
			srv := &http.Server{
				Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:      r.Engine(),
				ReadTimeout:  timeout,
				WriteTimeout: timeout,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("starting server", "addr", srv.Addr, "driver", cfg.Database.Driver)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}

			log.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSeconds)*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			log.Info("server exited properly")
			return nil
		},
	}
}
