package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/recommendation-writer/internal/config"
	"github.com/jonathan/recommendation-writer/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes REST endpoints for generating, refining and versioning recommendations.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, false, true)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := server.Config{
		Port:           a.cfg.Port,
		AllowedOrigins: a.cfg.AllowedOrigins,
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if a.cfg.RequireAuth {
		jwtConfig, err := config.NewJWTConfig()
		if err != nil {
			return err
		}
		cfg.JWT = jwtConfig
	}
	if a.db != nil {
		cfg.Health = a.db.Ping
		cfg.Stats = a.db.Experiments().StrategyStats
	}

	srv, err := server.New(cfg, a.svc, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	return srv.Start(ctx)
}
