package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"montage/internal/builder"
	"montage/internal/config"
	"montage/internal/features"
	"montage/internal/timeline"
)

type compileOptions struct {
	file     string
	out      string
	fps      float64
	width    int
	height   int
	optimize bool
}

func newCompileCommand(ctx *commandContext) *cobra.Command {
	var opts compileOptions

	cmd := &cobra.Command{
		Use:   "compile [brief...]",
		Short: "Compile a natural-language brief into a timeline document",
		Example: `  montage compile "A 20 second cinematic beach video with fade and subtitles"
  montage compile --file brief.txt --out beach.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			brief, err := readBrief(cmd, args, opts.file)
			if err != nil {
				return err
			}
			tl, suggestions, err := compileBrief(cfg, logger, brief, opts)
			if err != nil {
				return err
			}
			printSuggestions(cmd.ErrOrStderr(), suggestions)
			return writeTimeline(cmd, tl, opts.out)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Read the brief from a file (- for stdin)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write the timeline to a file instead of stdout")
	cmd.Flags().Float64Var(&opts.fps, "fps", builder.DefaultFPS, "Output frame rate")
	cmd.Flags().IntVar(&opts.width, "width", builder.DefaultWidth, "Output width in pixels")
	cmd.Flags().IntVar(&opts.height, "height", builder.DefaultHeight, "Output height in pixels")
	cmd.Flags().BoolVar(&opts.optimize, "optimize", true, "Run the optimizer on the built timeline")
	return cmd
}

// compileBrief runs extraction, building and (optionally) optimization.
func compileBrief(cfg *config.Config, logger *slog.Logger, brief string, opts compileOptions) (timeline.Timeline, []string, error) {
	f, err := features.Extract(brief)
	if err != nil {
		return timeline.Timeline{}, nil, err
	}
	catalog, err := loadCatalog(cfg, logger)
	if err != nil {
		return timeline.Timeline{}, nil, err
	}
	b := builder.New(catalog, builder.WithFormat(opts.fps, opts.width, opts.height))
	tl, err := b.Build(f)
	if err != nil {
		return timeline.Timeline{}, nil, err
	}
	if !opts.optimize {
		return tl, timeline.Suggestions(tl), nil
	}
	optimized, suggestions := timeline.Optimize(tl)
	return optimized, suggestions, nil
}
