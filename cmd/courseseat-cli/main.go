package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ManuelReschke/CourseSeat/internal/pkg/config"
)

var Version = "dev"

var cfg *config.Config

func main() {
	rootCmd := &cobra.Command{
		Use:     "courseseat-cli",
		Short:   "CourseSeat maintenance commands",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(adminCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
