package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/matsen/bibrename/internal/server"
	"github.com/matsen/bibrename/internal/server/handler"
	"github.com/spf13/cobra"
)

var (
	serveAddr   string
	serveNaming namingFlags
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the rename HTTP service",
	Long: `Run the rename HTTP service.

Endpoints:
  POST /api/v1/rename        multipart "file" (PDF) and optional "doi";
                             returns the PDF under its new name
  POST /api/v1/detect        multipart "file"; returns detected DOIs
  GET  /api/v1/lookup/{doi}  publication record and filename
  GET  /api/v1/health        liveness

The server stops gracefully on SIGINT or SIGTERM.

Examples:
  bibrename serve
  bibrename serve --addr 127.0.0.1:9000 --template compact`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config server_addr)")
	addNamingFlags(serveCmd, &serveNaming)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	addr := cfg.ServerAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	store := mustOpenCache(cfg)
	defer store.Close()

	// A running service logs every request.
	slog.SetDefault(newLogger(os.Stderr, logLevel(slog.LevelInfo), logJSON))

	p := handler.Pipeline{
		Text:           newExtractor(cfg),
		Resolver:       newResolver(cfg, store),
		Synthesizer:    mustSynthesizer(cfg, serveNaming),
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         slog.Default(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Serve(ctx, addr, server.NewRouter(server.NewDependencies(p))); err != nil {
		exitWithError(ExitError, "%v", err)
	}
	return nil
}
