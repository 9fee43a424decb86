package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"montage/internal/chunking"
	"montage/internal/textutil"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "plan <timeline.json|->",
		Short: "Show how a timeline would be split into render chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			tl, err := loadTimeline(cmd, args[0])
			if err != nil {
				return err
			}
			plan, err := newPlanner(cfg, logger).Plan(tl)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, plan)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderPlan(plan))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the plan as JSON")
	return cmd
}

func renderPlan(plan chunking.Plan) string {
	summary := renderFields([][2]string{
		{"Estimate", textutil.FormatBytes(plan.Estimate)},
		{"Available", textutil.FormatBytes(plan.Available)},
		{"Budget", textutil.FormatBytes(plan.Budget)},
		{"Chunk length", formatSeconds(plan.ChunkSeconds)},
		{"Split", yesNo(plan.Split())},
	})
	rows := make([][]string, 0, len(plan.Chunks))
	for _, c := range plan.Chunks {
		rows = append(rows, []string{
			strconv.Itoa(c.Index),
			formatSeconds(c.Start),
			formatSeconds(c.End),
			strconv.Itoa(c.Frames),
			strconv.Itoa(clipCount(c)),
		})
	}
	chunks := renderTable(
		[]string{"Chunk", "Start", "End", "Frames", "Clips"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
	)
	return summary + "\n" + chunks
}

func clipCount(c chunking.Chunk) int {
	n := 0
	for _, t := range c.Timeline.Tracks {
		n += len(t.Clips)
	}
	return n
}
