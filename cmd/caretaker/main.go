package main

import (
	"fmt"
	"os"

	"github.com/fentz26/caretaker/internal/controlplane"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "caretaker",
	Short: "caretaker - pet-care fleet supervisor",
	Long: `caretaker keeps a fleet of virtual pets healthy. It reconciles the accounts
listed in a registry against running monitors, and each monitor polls its
pet's status, asks the configured language models what to do, and acts.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		controlplane.Version = version
	},
}

var (
	apiAddr    string
	configPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:7477", "API server address")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a TOML config file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of caretaker",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
