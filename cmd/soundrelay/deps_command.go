package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"soundrelay/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external tool availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			if ctx.jsonMode() {
				return writeJSON(cmd, map[string]any{"dependencies": statuses})
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			missingRequired := false
			for _, line := range dependencyLines(cfg, colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, status := range statuses {
				if !status.Available && !status.Optional {
					missingRequired = true
				}
			}
			if missingRequired {
				return errors.New("required dependencies are missing")
			}
			return nil
		},
	}
}
