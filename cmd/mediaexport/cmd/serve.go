package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/astralstream/mediaexport/internal/database"
	httpserver "github.com/astralstream/mediaexport/internal/http"
	"github.com/astralstream/mediaexport/internal/http/handlers"
	"github.com/astralstream/mediaexport/internal/repository"
	"github.com/astralstream/mediaexport/internal/service/progress"
	"github.com/astralstream/mediaexport/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the export status API server",
	Long: `Serve runs the HTTP status API: export history, live progress
operations, and an SSE event stream. It does not start exports itself;
exports run via the export command or the embedding application.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "listen address (overrides config)")
	serveCmd.Flags().Int("port", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	jobs := repository.NewExportJobRepository(db.DB)
	progressService := progress.NewService(logger)

	serverCfg := httpserver.DefaultServerConfig()
	serverCfg.Host = cfg.Server.Host
	serverCfg.Port = cfg.Server.Port
	serverCfg.ReadTimeout = cfg.Server.ReadTimeout
	serverCfg.WriteTimeout = cfg.Server.WriteTimeout
	serverCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	if cmd.Flags().Changed("host") {
		serverCfg.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		serverCfg.Port, _ = cmd.Flags().GetInt("port")
	}

	server := httpserver.NewServer(serverCfg, logger, version.Short())

	handlers.NewHealthHandler().Register(server.API())
	handlers.NewJobsHandler(jobs).Register(server.API())
	progressHandler := handlers.NewProgressHandler(progressService)
	progressHandler.Register(server.API())
	progressHandler.RegisterSSE(server.Router())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return server.Stop(context.Background())
}
