package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/entropyctl/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve configured sources over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, built, err := loadSources()
	if err != nil {
		return err
	}
	if flagAddr != "" {
		cfg.Addr = flagAddr
	}

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(server.Options{
		ID:          cfg.ID,
		Addr:        cfg.Addr,
		CorsOrigins: cfg.CorsOrigins,
		MaxLength:   cfg.MaxLength,
		Registry:    built.Registry,
		Default:     built.Default,
		DefaultName: built.DefaultName,
		Auth:        cfg.Validator(),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil {
		return err
	}
	log.Info().Str("id", cfg.ID).Msg("entropy service stopped")
	return nil
}
