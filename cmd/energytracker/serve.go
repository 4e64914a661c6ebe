package main

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/jgoulah/energytracker/internal/ctxlog"
	"github.com/jgoulah/energytracker/internal/web"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the CSV upload page",
	Long: `Starts an HTTP server with an upload form. Each upload is summarized into the
preview, summary table, chart and totals. POST /api/report returns the same report as JSON.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, else :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	addr := cfg.GetAddr()
	if serveAddr != "" {
		addr = serveAddr
	}

	logger := ctxlog.FromContext(cmd.Context())
	if !logger.Enabled(cmd.Context(), slog.LevelDebug) {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := web.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run(cmd.Context(), addr)
}
