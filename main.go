package main

import (
	"fmt"
	"os"

	"akshay-tray/config"
	"akshay-tray/logger"

	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        config.Config

	flagBackend     string
	flagDataDir     string
	flagCoordinator string
	flagWindowID    string
	flagLogLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "tray",
	Short: "Session store and IPC coordinator for the tray app",
	Long: `tray keeps the shared session state of the tray app: the auth token,
the user profile and the GraphQL query cache.

Run "tray serve" for the coordinator process. The other commands act as a
window talking to it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("backend") {
			loaded.Backend = flagBackend
		}
		if cmd.Flags().Changed("data-dir") {
			loaded.DataDir = flagDataDir
		}
		if cmd.Flags().Changed("coordinator") {
			loaded.CoordinatorURL = flagCoordinator
		}
		if cmd.Flags().Changed("window-id") {
			loaded.WindowID = flagWindowID
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = flagLogLevel
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		if err := logger.Configure(loaded.LogLevel, loaded.LogFormat); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "tray.yaml", "path to YAML config")
	pf.StringVar(&flagBackend, "backend", config.BackendJSON, "store backend: json, sqlite, memory, remote, none")
	pf.StringVar(&flagDataDir, "data-dir", "", "directory holding the store file")
	pf.StringVar(&flagCoordinator, "coordinator", "", "coordinator URL for windows")
	pf.StringVar(&flagWindowID, "window-id", "", "identifier this window reports to the coordinator")
	pf.StringVar(&flagLogLevel, "log-level", "info", "log level")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd, userCmd, cacheCmd, formatCmd, clearCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
