package drapto

import (
	"context"
	"strings"

	draptolib "github.com/five82/drapto"
)

// Library implements Client using the Drapto Go library directly,
// bypassing the CLI shell-out.
type Library struct{}

// NewLibrary constructs a Library client.
func NewLibrary() *Library {
	return &Library{}
}

// Encode encodes a video file using the Drapto library.
func (l *Library) Encode(ctx context.Context, inputPath, outputDir string, progress func(ProgressUpdate)) (string, error) {
	outputPath, err := outputFor(inputPath, outputDir)
	if err != nil {
		return "", err
	}

	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return "", err
	}

	var rep draptolib.Reporter
	if progress != nil {
		rep = newProgressReporter(progress)
	}
	if _, err := encoder.EncodeWithReporter(ctx, inputPath, strings.TrimSpace(outputDir), rep); err != nil {
		return "", err
	}
	return outputPath, nil
}

var _ Client = (*Library)(nil)
