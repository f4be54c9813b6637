package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-mcp-gateway/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		envFile string
		port    string
	)

	root := &cobra.Command{
		Use:           "mcp-gateway",
		Short:         "Multi-tenant MCP gateway with an OAuth 2.1 authorization server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if port != "" {
				c.Port = port
			}
			return run(cmd.Context(), c)
		},
	}
	root.Flags().StringVar(&envFile, "env-file", ".env", "Optional .env file loaded before the environment is read")
	root.Flags().StringVar(&port, "port", "", "Listen port, overrides PORT")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("gateway stopped with an error")
		os.Exit(1)
	}
}

func run(ctx context.Context, c *config.Settings) error {
	setupLogging(c)
	displayAppname(c.GetAppName())

	app, err := newApp(ctx, c)
	if err != nil {
		return err
	}
	defer app.close()

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listenAndServe(httpServer)
	})
	if app.sweep {
		g.Go(func() error {
			return app.auth.RunSweeper(gctx, c.GetOAuthSweepInterval())
		})
	}
	g.Go(func() error {
		return app.sessions.RunJanitor(gctx, c.GetSessionCleanupInterval(), c.GetSessionMaxIdle())
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(httpServer)
	})

	err = g.Wait()
	log.Info().Int("sessions_closed", app.sessions.CloseAll()).Msg("server stopped")
	return err
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func setupLogging(c config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if strings.EqualFold(c.GetEnv(), "DEV") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
