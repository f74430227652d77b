package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"quickaccounting/internal/cli"
	"quickaccounting/internal/config"
	apphttp "quickaccounting/internal/http"
	"quickaccounting/internal/log"
	"quickaccounting/internal/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "quickaccounting:", err)
		os.Exit(1)
	}
}

func run() error {
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	port := pflag.String("port", "", "HTTP port, overrides PORT")
	dbPath := pflag.String("db", "", "SQLite database file, overrides SQLITE_DB_PATH")
	pflag.Parse()

	if err := cli.LoadEnvFile(*envFile); err != nil {
		return err
	}

	cfg, err := cli.LoadAndValidateConfig(func(c *config.Config) {
		if *port != "" {
			c.Port = *port
		}
		if *dbPath != "" {
			c.SQLiteDBPath = *dbPath
		}
	})
	if err != nil {
		return err
	}

	logger, err := cli.SetupLogger(cfg)
	if err != nil {
		return err
	}

	repo, err := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close SQLite repository", log.FieldError, err)
		}
	}()

	opts := []services.Option{}
	if publisher := cli.InitPublisher(logger, cfg); publisher != nil {
		defer publisher.Close()
		opts = append(opts, services.WithPublisher(publisher))
	}

	ledger := services.NewLedgerService(repo, opts...)
	srv := apphttp.NewServer(cfg.Addr(), ledger, repo, logger)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting quickaccounting server",
			log.FieldOperation, log.OpStartup,
			"addr", cfg.Addr(),
			"db", cfg.SQLiteDBPath,
			"events", cfg.EventsEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve %s: %w", cfg.Addr(), err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	m := srv.Metrics()
	logger.Info("Server stopped gracefully",
		"requests", m.TotalRequests,
		"server_errors", m.ServerErrors,
		"avg_response", m.AverageResponseTime().String())
	return nil
}
