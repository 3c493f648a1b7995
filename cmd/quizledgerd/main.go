package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/collapsinghierarchy/quizledger/config"
	"github.com/collapsinghierarchy/quizledger/handler"
	"github.com/collapsinghierarchy/quizledger/ledger"
	"github.com/collapsinghierarchy/quizledger/metrics"
	"github.com/collapsinghierarchy/quizledger/pkc/seal"
	"github.com/collapsinghierarchy/quizledger/pkc/sign"
	"github.com/collapsinghierarchy/quizledger/routes"
	"github.com/collapsinghierarchy/quizledger/service"
	"github.com/collapsinghierarchy/quizledger/store/postgres"
)

// questionContext binds the sealing key to question storage.
var questionContext = []byte("quizledger/questions/v1")

func main() {
	if err := command().Execute(); err != nil {
		os.Exit(1)
	}
}

func command() *cobra.Command {
	cfg, envErr := config.FromEnv(os.Getenv)
	cmd := &cobra.Command{
		Use:          "quizledgerd",
		Short:        "Serves the quiz API and its timed submission ledger",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if envErr != nil {
				return envErr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cfg.BindFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	log, err := newLogger(cfg.DevLog)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	//----------------------------------------------------------------------
	// 1. Postgres
	//----------------------------------------------------------------------
	dbCtx, dbCancel := context.WithTimeout(ctx, 5*time.Second)
	defer dbCancel()

	pool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("pgxpool.New: %w", err)
	}
	defer pool.Close()

	st := postgres.NewStore(pool)
	if err := st.Migrate(dbCtx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	//----------------------------------------------------------------------
	// 2. keys → ledger → service → API handlers
	//----------------------------------------------------------------------
	signer, err := sign.New(rand.Reader)
	if err != nil {
		return err
	}
	sealer, err := seal.New([]byte(cfg.QuestionSecret), questionContext)
	if err != nil {
		return err
	}
	releaseAt, err := cfg.ReleaseTime()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	l := ledger.New(signer, cfg.FreezeAfter,
		ledger.WithLogger(log.Named("ledger")),
		ledger.WithMetrics(m))
	defer l.Close()

	svc := service.New(st, st, sealer,
		service.WithMaxQuestions(cfg.MaxQuestions),
		service.WithReleaseAt(releaseAt))

	api := routes.SetupRoutes(routes.Deps{
		Server:   handler.New(l, signer, svc, log.Named("http")),
		Ledger:   l,
		Metrics:  m,
		Gatherer: reg,
		Log:      log.Named("http"),
	})

	//----------------------------------------------------------------------
	// 3. HTTP server with graceful shutdown
	//----------------------------------------------------------------------
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      api,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("quizledger listening",
			zap.String("addr", cfg.Addr),
			zap.Duration("freezeAfter", cfg.FreezeAfter))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// CTRL-C → graceful stop
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ListenAndServe: %w", err)
		}
		return nil
	case <-sigCtx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
