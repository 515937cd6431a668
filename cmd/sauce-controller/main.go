// sauce-controller runs the controller-side protocol engine: it loads
// a machine configuration and serves SSG over WebSocket plus a plain
// HTTP config endpoint until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"saucecnc/controller/config"
	"saucecnc/controller/server"
)

var (
	configPath string
	listenAddr string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:     "sauce-controller",
	Short:   "Sauce plotter controller",
	Long:    "sauce-controller accepts SSG connections from a host, drives the trapezoidal motion planner and homing sequence, and enforces the state machine and safety monitor.",
	Version: "1.0.0",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load configuration and serve SSG connections",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to machine configuration JSON (defaults built in if omitted)")
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Override listen_addr from configuration")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("sauce-controller: %w", err)
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}

	listener := server.NewListener(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("addr", cfg.ListenAddr).Msg("sauce-controller starting")
	return listener.ListenAndServe(ctx)
}

func loadConfig() (*config.MachineConfig, error) {
	if configPath == "" {
		return config.DefaultMachineConfig(), nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return config.LoadConfig(data)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("sauce-controller failed")
		os.Exit(1)
	}
}
