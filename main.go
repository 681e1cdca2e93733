package main

import (
	"fmt"
	"os"
	"pagobot/config"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "pagobot",
		Short: "Payment reminder and proof-of-payment chat bot",
		Long: `pagobot reminds clients of upcoming payments over chat, collects their
proofs of payment and routes them to an approver who accepts or rejects them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.SetPath(configPath)
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			return cfg.Validate()
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./pagobot_config.json", "Path to the JSON config file")
}

func main() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(remindCmd)
	rootCmd.AddCommand(clientsCmd)
	rootCmd.AddCommand(stateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
