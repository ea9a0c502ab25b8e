package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/research-mcp/internal/cache"
	"github.com/sells-group/research-mcp/internal/mcpserver"
)

var (
	serveTransport string
	serveAddr      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long:  "Serves the research tools over stdio (default), SSE or streamable HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if serveTransport != "" {
			cfg.Server.Transport = serveTransport
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// The purge loop stops before env.Close closes the cache.
		purgeCtx, stopPurge := context.WithCancel(ctx)
		purged := make(chan struct{})
		go func() {
			defer close(purged)
			cache.PurgeEvery(purgeCtx, env.Cache, cfg.Cache.TTL())
		}()
		defer func() {
			stopPurge()
			<-purged
		}()

		s := mcpserver.New(env.Engine, version)
		zap.L().Info("starting mcp server",
			zap.String("transport", cfg.Server.Transport),
			zap.String("addr", cfg.Server.Addr),
			zap.String("version", version),
		)
		return mcpserver.Serve(ctx, s, cfg.Server.Transport, cfg.Server.Addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveTransport, "transport", "", "stdio, sse or http (default from config)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address for sse and http (default from config)")
	rootCmd.AddCommand(serveCmd)
}
