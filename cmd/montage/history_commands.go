package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"montage/internal/jobs"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past renders",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))
	return historyCmd
}

func (c *commandContext) withStore(fn func(*jobs.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := jobs.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var hash string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent renders, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *jobs.Store) error {
				var records []jobs.Record
				var err error
				if hash != "" {
					records, err = store.ByHash(cmd.Context(), hash)
				} else {
					records, err = store.List(cmd.Context(), limit)
				}
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, records)
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No renders recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderHistory(records))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of renders to list (0 for all)")
	cmd.Flags().StringVar(&hash, "hash", "", "Only list renders of the timeline with this content hash")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print records as JSON")
	return cmd
}

func renderHistory(records []jobs.Record) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			shortID(r.ID),
			r.Title,
			string(r.Status),
			strconv.Itoa(r.Chunks),
			strconv.Itoa(r.Placeholders),
			formatElapsed(r.Elapsed()),
			formatTime(r.CreatedAt),
		})
	}
	return renderTable(
		[]string{"ID", "Title", "Status", "Chunks", "Placeholders", "Elapsed", "Started"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var showTimeline bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one render report (an id prefix is enough)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *jobs.Store) error {
				record, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if record == nil {
					return fmt.Errorf("render %q not found", args[0])
				}
				if showTimeline {
					return printSnapshot(cmd, store, record.ID)
				}
				report, err := record.Report()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, report)
				}
				printReport(cmd.OutOrStdout(), report, shouldColorize(cmd.OutOrStdout()))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the report as JSON")
	cmd.Flags().BoolVar(&showTimeline, "timeline", false, "Print the rendered timeline document instead of the report")
	return cmd
}

func printSnapshot(cmd *cobra.Command, store *jobs.Store, id string) error {
	doc, err := store.Snapshot(cmd.Context(), id)
	if err != nil {
		return err
	}
	if len(doc) == 0 {
		return errors.New("no timeline snapshot stored for this render")
	}
	_, err = cmd.OutOrStdout().Write(doc)
	return err
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete recorded renders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *jobs.Store) error {
				removed, err := clearHistory(cmd.Context(), store, olderThan)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d render(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only delete renders older than this (e.g. 720h)")
	return cmd
}

func clearHistory(ctx context.Context, store *jobs.Store, olderThan time.Duration) (int64, error) {
	if olderThan > 0 {
		return store.PruneBefore(ctx, time.Now().Add(-olderThan))
	}
	return store.Clear(ctx)
}
