package main

import (
	"fmt"

	"github.com/danmuck/entropyctl/internal/config"
	"github.com/spf13/cobra"
)

var (
	flagTemplate string
	flagForce    bool
)

var initCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write a starter config",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.toml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteTemplate(path, flagTemplate, flagForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s config to %s\n", flagTemplate, path)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVarP(&flagTemplate, "template", "t", "minimal", "template: minimal or full")
	initCmd.Flags().BoolVar(&flagForce, "force", false, "overwrite an existing file")
}
