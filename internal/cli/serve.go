package cli

import (
	"context"
	"os"
	"syscall"

	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bridgewarden/bridgewarden/internal/logging"
	"github.com/bridgewarden/bridgewarden/internal/mcp"
	"github.com/bridgewarden/bridgewarden/internal/server"
)

var serveLogLevel string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "info", "Log level (debug|info|warn|error), logs go to stderr")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the gateway tools over MCP on stdio",
	Long:  "Starts the MCP server on stdin/stdout. The config file is hot-reloaded\non change and on SIGHUP; in-flight scans keep the policy they started with.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	snap, err := loadSnapshot()
	if err != nil {
		return err
	}

	log := logging.New(serveLogLevel)
	defer log.Sync()

	srv, err := mcp.New(snap, log)
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reloader, err := server.NewReloader(srv, cfgPath, log)
	if err != nil {
		log.Warn("hot reload disabled", zap.Error(err))
	} else {
		go reloader.Run(ctx)
	}

	log.Info("serving MCP on stdio",
		zap.String("profile", snap.Cfg.Profile),
		zap.String("policy_version", snap.Version),
		zap.String("data_dir", snap.Cfg.DataDir))
	return srv.Run(ctx)
}
