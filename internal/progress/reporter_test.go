package progress

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestLogReporterSamplesProgress(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := NewLog(logger)

	r.Start("scanning original")
	r.Grow(50)
	r.Grow(50)
	for i := 0; i < 100; i++ {
		r.Advance(1)
	}
	r.Finish()

	lines := strings.Count(buf.String(), "scanning original")
	// One line per 10% bucket plus the completion line.
	if lines != 11 {
		t.Fatalf("expected 11 progress lines, got %d:\n%s", lines, buf.String())
	}
	if !strings.Contains(buf.String(), "done=100 total=100") {
		t.Fatalf("missing completion line:\n%s", buf.String())
	}
}

func TestTerminalReporterConcurrentUse(t *testing.T) {
	var buf bytes.Buffer
	r := NewTerminal(&buf)
	r.Start("scanning")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Grow(10)
			for j := 0; j < 10; j++ {
				r.Advance(1)
			}
		}()
	}
	wg.Wait()
	r.Finish()

	if r.max != 40 {
		t.Fatalf("expected max 40, got %d", r.max)
	}
}

func TestNopReporter(t *testing.T) {
	r := Nop()
	r.Start("x")
	r.Grow(1)
	r.Advance(1)
	r.Finish()
}
