package main

import (
	"github.com/spf13/cobra"

	"montage/internal/render"
)

// newWorkerCommand renders exactly one chunk: a CBOR job on stdin, a CBOR
// result on stdout. The parent render process launches it per chunk when
// render.isolation is "process".
func newWorkerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "Render one chunk job read from stdin",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			runner, err := newLocalRunner(cfg, logger)
			if err != nil {
				return err
			}
			return render.ServeWorker(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), runner)
		},
	}
}
