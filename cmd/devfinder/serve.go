package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/r58studio/devfinder/internal/discovery"
	"github.com/r58studio/devfinder/internal/logging"
	"github.com/r58studio/devfinder/internal/server"
)

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, "+server.DefaultAddr+")")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve discovery to a UI over WebSocket",
	Long: `Start the IPC server. A UI connects to ws://<addr>/ws, sends commands
such as {"command":"start-scan"} and receives scan events as they happen.

The server binds to loopback by default. Stop it with Ctrl+C.`,
	Example: `  devfinder serve
  devfinder serve --addr 127.0.0.1:9000 --log-level info`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}

		hub := server.NewHub()
		orch := discovery.New(buildOptions(cfg, phaseOverrides{}), hub)
		srv := server.New(&server.Config{Addr: addr}, orch, hub)

		logging.Info("Starting devfinder server", zap.String("addr", addr))
		fmt.Printf("Listening on ws://%s/ws\n", addr)
		return srv.Start()
	},
}
