package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"montage/internal/config"
	"montage/internal/timeline"
)

// readInput returns the contents of path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("input path is required")
	}
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func loadTimeline(cmd *cobra.Command, path string) (timeline.Timeline, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return timeline.Timeline{}, err
	}
	return timeline.Decode(data)
}

// writeTimeline prints tl to stdout, or writes it atomically to out.
func writeTimeline(cmd *cobra.Command, tl timeline.Timeline, out string) error {
	out = strings.TrimSpace(out)
	if out == "" || out == "-" {
		data, err := timeline.Encode(tl)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	expanded, err := config.ExpandPath(out)
	if err != nil {
		return err
	}
	if err := timeline.WriteFile(expanded, tl); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote timeline to %s\n", expanded)
	return nil
}

// readBrief joins the positional words, or reads the brief from file.
func readBrief(cmd *cobra.Command, args []string, file string) (string, error) {
	if strings.TrimSpace(file) != "" {
		if len(args) > 0 {
			return "", errors.New("pass the brief as arguments or --file, not both")
		}
		data, err := readInput(cmd, file)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	brief := strings.TrimSpace(strings.Join(args, " "))
	if brief == "" {
		return "", errors.New("a brief is required (arguments, --file, or --file -)")
	}
	return brief, nil
}

func printSuggestions(w io.Writer, suggestions []string) {
	for _, s := range suggestions {
		fmt.Fprintf(w, "suggestion: %s\n", s)
	}
}
