package app

import (
	"log/slog"
	"strings"
	"testing"
)

func TestStripANSI(t *testing.T) {
	t.Parallel()

	in := ansiBlue + "INFO" + ansiReset + " plain " + ansiRed + "ERR" + ansiReset
	got := stripANSI(in)
	want := "INFO plain ERR"
	if got != want {
		t.Fatalf("stripANSI()=%q want=%q", got, want)
	}
}

func TestPrettyHandler_RendersAttrs(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	h := newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, false)
	log := slog.New(h)

	log.Info("http.request", "method", "GET", "path", "/users/current-user", "status", 200)

	out := buf.String()
	for _, want := range []string{"msg=http.request", "method=GET", "path=/users/current-user", "status=200"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

func TestPrettyHandler_RespectsLevel(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	h := newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, false)
	log := slog.New(h)

	log.Info("dropped")
	log.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info record should be filtered: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: `""`},
		{in: "plain", want: "plain"},
		{in: "has space", want: `"has space"`},
		{in: "k=v", want: `"k=v"`},
	}
	for _, tc := range cases {
		if got := quoteIfNeeded(tc.in); got != tc.want {
			t.Fatalf("quoteIfNeeded(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}
