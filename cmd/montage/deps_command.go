package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"montage/internal/deps"
	"montage/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external binaries and directories used for rendering",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			environment := preflight.CheckEnvironment(cfg)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range dependencyLines(statuses, colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Environment", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range preflightLines(environment, colorize) {
				fmt.Fprintln(out, line)
			}

			if len(deps.Missing(statuses)) > 0 || len(preflight.Failed(environment)) > 0 {
				return errors.New("some checks failed")
			}
			return nil
		},
	}
}
