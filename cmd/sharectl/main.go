package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/templui/sharebox/cmd/sharectl/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "sharectl",
		Short:        "Maintenance tools for sharebox",
		SilenceUsage: true,
	}

	cmd.AddDatabaseFlags(rootCmd)
	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.UserCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
