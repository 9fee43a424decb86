package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"montage/internal/timeline"
)

func newOptimizeCommand(_ *commandContext) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:         "optimize <timeline.json|->",
		Short:       "Repair clip overlaps and infer transitions",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			tl, err := loadTimeline(cmd, args[0])
			if err != nil {
				return err
			}
			optimized, suggestions := timeline.Optimize(tl)
			printSuggestions(cmd.ErrOrStderr(), suggestions)
			return writeTimeline(cmd, optimized, out)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the optimized timeline to a file instead of stdout")
	return cmd
}

func newValidateCommand(_ *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate <timeline.json|->",
		Short:       "Check a timeline document against the schema",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			tl, err := loadTimeline(cmd, args[0])
			if err != nil {
				return err
			}
			hash, err := timeline.Hash(tl)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Timeline valid: %q (%s, %d tracks, %d frames)\n", tl.Title(), formatSeconds(tl.Duration), len(tl.Tracks), tl.FrameCount())
			fmt.Fprintf(out, "Hash: %s\n", hash)
			printSuggestions(out, timeline.Suggestions(tl))
			return nil
		},
	}
}
