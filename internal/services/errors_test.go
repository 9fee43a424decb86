package services_test

import (
	"errors"
	"strings"
	"testing"

	"montage/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrEncoding, "emitting", "write", "ffmpeg exited", base)
	if !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"emitting", "write", "ffmpeg exited"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutMarkerDefaultsToExternalTool(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "render failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestSeverityOf(t *testing.T) {
	cases := []struct {
		err  error
		want services.Severity
	}{
		{services.Wrap(services.ErrResourceMissing, "resolve", "", "clip 2", nil), services.SeverityRecoverable},
		{services.Wrap(services.ErrEffectApplication, "transform", "blur", "", nil), services.SeverityRecoverable},
		{services.Wrap(services.ErrEncoding, "emit", "", "", nil), services.SeverityFatal},
		{errors.New("plain"), services.SeverityFatal},
	}
	for _, tc := range cases {
		if got := services.SeverityOf(tc.err); got != tc.want {
			t.Fatalf("SeverityOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestKind(t *testing.T) {
	if got := services.Kind(services.Wrap(services.ErrValidation, "", "", "x", nil)); got != "validation" {
		t.Fatalf("unexpected kind %q", got)
	}
	if got := services.Kind(nil); got != "" {
		t.Fatalf("expected empty kind for nil, got %q", got)
	}
}
