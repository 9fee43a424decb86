package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"montage/internal/builder"
	"montage/internal/preflight"
	"montage/internal/render"
	"montage/internal/services"
	"montage/internal/timeline"
)

type renderFlags struct {
	brief         string
	fps           float64
	width         int
	height        int
	workers       int
	isolation     string
	finish        bool
	noOptimize    bool
	skipPreflight bool
	jsonOut       bool
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var flags renderFlags

	cmd := &cobra.Command{
		Use:   "render [timeline.json|-]",
		Short: "Render a timeline (or a brief) to a video file",
		Example: `  montage render beach.json
  montage render --brief "30 seconds of city lights, neon style, crossfade"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			var tl timeline.Timeline
			switch {
			case strings.TrimSpace(flags.brief) != "" && len(args) > 0:
				return errors.New("pass a timeline file or --brief, not both")
			case strings.TrimSpace(flags.brief) != "":
				tl, _, err = compileBrief(cfg, logger, flags.brief, compileOptions{
					fps:    flags.fps,
					width:  flags.width,
					height: flags.height,
				})
			case len(args) == 1:
				tl, err = loadTimeline(cmd, args[0])
			default:
				return errors.New("a timeline file or --brief is required")
			}
			if err != nil {
				return err
			}
			if !flags.noOptimize {
				var suggestions []string
				tl, suggestions = timeline.Optimize(tl)
				printSuggestions(cmd.ErrOrStderr(), suggestions)
			}

			if !flags.skipPreflight {
				if err := preflight.Summarize(preflight.RunAll(cmd.Context(), cfg)); err != nil {
					return services.Wrap(services.ErrConfiguration, "render", "preflight", "environment not ready (see montage deps)", err)
				}
			}

			doc, err := timeline.Encode(tl)
			if err != nil {
				return err
			}
			opts := renderOptions{
				workers:   cfg.Render.Workers,
				isolation: cfg.Render.Isolation,
				finish:    cfg.Encoder.DraptoFinish || flags.finish,
				stderr:    cmd.ErrOrStderr(),
			}
			if flags.workers > 0 {
				opts.workers = flags.workers
			}
			if iso := strings.ToLower(strings.TrimSpace(flags.isolation)); iso != "" {
				opts.isolation = iso
			}
			session, err := newRenderSession(cmd.Context(), ctx, cfg, logger, doc, opts)
			if err != nil {
				return err
			}
			defer session.Close()

			report, renderErr := session.renderer.Render(cmd.Context(), tl)
			if flags.jsonOut {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printReport(cmd.OutOrStdout(), report, shouldColorize(cmd.OutOrStdout()))
			}
			return renderErr
		},
	}

	cmd.Flags().StringVarP(&flags.brief, "brief", "b", "", "Compile and render this brief instead of a timeline file")
	cmd.Flags().Float64Var(&flags.fps, "fps", builder.DefaultFPS, "Frame rate for --brief")
	cmd.Flags().IntVar(&flags.width, "width", builder.DefaultWidth, "Width in pixels for --brief")
	cmd.Flags().IntVar(&flags.height, "height", builder.DefaultHeight, "Height in pixels for --brief")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "Concurrent chunk workers (default from config)")
	cmd.Flags().StringVar(&flags.isolation, "isolation", "", "Chunk isolation: process or inprocess (default from config)")
	cmd.Flags().BoolVar(&flags.finish, "finish", false, "Run the Drapto finishing pass on the stitched output")
	cmd.Flags().BoolVar(&flags.noOptimize, "no-optimize", false, "Render the timeline as given without optimizing it")
	cmd.Flags().BoolVar(&flags.skipPreflight, "skip-preflight", false, "Skip binary and directory checks")
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "Print the render report as JSON")
	return cmd
}

func printReport(w io.Writer, report render.Report, colorize bool) {
	fmt.Fprintln(w, renderFields([][2]string{
		{"Render", report.RenderID},
		{"Title", report.Title},
		{"Artifact", valueOrDash(report.Artifact)},
		{"Chunks", strconv.Itoa(len(report.Chunks))},
		{"Started", formatTime(report.Started)},
		{"Elapsed", formatElapsed(report.Elapsed)},
	}))
	fmt.Fprintln(w, renderStatusLine("Status", statusKindForRender(report.Status), string(report.Status), colorize))

	if len(report.Chunks) > 0 {
		rows := make([][]string, 0, len(report.Chunks))
		for _, c := range report.Chunks {
			rows = append(rows, []string{
				strconv.Itoa(c.Index),
				formatSeconds(c.Start),
				formatSeconds(c.End),
				string(c.State),
				formatElapsed(c.Elapsed),
				valueOrDash(c.Error),
			})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"Chunk", "Start", "End", "State", "Elapsed", "Error"},
			rows,
			[]columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignRight, alignLeft},
		))
	}

	if len(report.PlaceholdersUsed) > 0 {
		rows := make([][]string, 0, len(report.PlaceholdersUsed))
		for _, p := range report.PlaceholdersUsed {
			rows = append(rows, []string{p.Track, strconv.Itoa(p.Clip), p.Source, formatSeconds(p.Start), formatSeconds(p.End), p.Reason})
		}
		for _, line := range renderSectionHeader("Placeholders", colorize) {
			fmt.Fprintln(w, line)
		}
		fmt.Fprintln(w, renderTable(
			[]string{"Track", "Clip", "Source", "Start", "End", "Reason"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft},
		))
	}

	if len(report.Failures) > 0 {
		for _, line := range renderSectionHeader("Skipped effects", colorize) {
			fmt.Fprintln(w, line)
		}
		for _, f := range report.Failures {
			label := f.Effect
			if f.Track != "" {
				label = fmt.Sprintf("%s[%d] %s", f.Track, f.Clip, f.Effect)
			}
			fmt.Fprintln(w, renderStatusLine(label, statusWarn, f.Message, colorize))
		}
	}

	printSuggestions(w, report.Suggestions)
	if report.Error != "" {
		fmt.Fprintln(w, renderStatusLine("Error", statusError, report.Error, colorize))
	}
}

func valueOrDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
