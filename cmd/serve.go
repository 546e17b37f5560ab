package cmd

import (
	"context"
	"log"

	"github.com/nytrohq/interview-screener/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the screening API over HTTP",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "listen address, overrides the config value")
}

func serve(cmd *cobra.Command) {
	ctx := context.Background()

	appCtx, err := bootstrap(ctx)
	if err != nil {
		log.Fatalf("starting the %s: %v", app, err)
	}

	logger := appCtx.logger

	addr := listenAddr(appCtx.config, cmd.Flag("listen").Value.String())

	srv := server.New(appCtx.interviews, appCtx.evaluations, appCtx.guides, logger)

	logger.Info("starting the api server", zap.String("version", version), zap.String("listen", addr))

	if err := srv.Run(addr); err != nil {
		logger.Fatal("api server stopped", zap.Error(err))
	}
}

// listenAddr resolves the listen address: the flag wins, then the config's
// server section when present, then the default. The server section is
// optional and may be absent entirely.
func listenAddr(config *Config, flagged string) string {
	if flagged != "" {
		return flagged
	}
	if config != nil && config.Server != nil && config.Server.Listen != "" {
		return config.Server.Listen
	}
	return ":8080"
}
