package pipeline_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"unflatten/internal/config"
	"unflatten/internal/matcher"
	"unflatten/internal/pipeline"
	"unflatten/internal/report"
	"unflatten/internal/testsupport"
)

type fixture struct {
	cfg       *config.Config
	flattened string
	original  string
	output    string
	names     map[string]string // identifier name -> original relative path
}

// newFixture builds an original tree, flattens it, and adds two flattened
// files with no original and one that is not a PDF.
func newFixture(t *testing.T, opts ...testsupport.ConfigOption) fixture {
	t.Helper()
	opts = append([]testsupport.ConfigOption{testsupport.WithStrategy("text")}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	f := fixture{
		cfg:       cfg,
		flattened: filepath.Join(base, "flat"),
		original:  filepath.Join(base, "orig"),
		output:    filepath.Join(base, "restored"),
	}

	testsupport.WritePDF(t, filepath.Join(f.original, "finance", "q1.pdf"),
		"quarterly revenue report for the first quarter")
	testsupport.WritePDF(t, filepath.Join(f.original, "finance", "q2.pdf"),
		"quarterly revenue report for the second quarter", "appendix")
	testsupport.WritePDF(t, filepath.Join(f.original, "legal", "contract.pdf"),
		"this services agreement is made between the parties named below", "terms", "signatures")
	testsupport.WritePDF(t, filepath.Join(f.original, "legal", "nda.pdf"),
		"mutual non disclosure agreement covering confidential information", "terms", "signatures")
	testsupport.WritePDF(t, filepath.Join(f.original, "forms", "alpha.pdf"), "form alpha", "a", "b", "c")
	testsupport.WritePDF(t, filepath.Join(f.original, "forms", "beta.pdf"), "form beta", "a", "b", "c")

	f.names = testsupport.Flatten(t, f.original, f.flattened)

	testsupport.WritePDF(t, filepath.Join(f.flattened, "stray-four.pdf"),
		"completely unrelated scanned content with many other words", "x", "y", "z")
	testsupport.WritePDF(t, filepath.Join(f.flattened, "stray-five.pdf"), "one", "two", "three", "four", "five")
	if err := os.WriteFile(filepath.Join(f.flattened, "broken.pdf"), []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f fixture) request(execute bool) pipeline.Request {
	return pipeline.Request{
		Flattened: f.flattened,
		Original:  f.original,
		Output:    f.output,
		Execute:   execute,
	}
}

func runPipeline(t *testing.T, cfg *config.Config, req pipeline.Request) pipeline.Outcome {
	t.Helper()
	p, err := pipeline.New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	out, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return out
}

func TestRunRestoresOriginalLayout(t *testing.T) {
	f := newFixture(t)
	mappingPath := filepath.Join(testsupport.BaseDir(f.cfg), "mapping.json")
	testsupport.WriteMapping(t, mappingPath, f.names)

	req := f.request(true)
	req.MappingPath = mappingPath
	out := runPipeline(t, f.cfg, req)

	want := matcher.Counts{Unique: 2, Resolved: 4, Ambiguous: 1, Unmatched: 2, Total: 9}
	if got := out.Result.Counts(); got != want {
		t.Fatalf("counts = %+v, want %+v", got, want)
	}
	if out.Run.Restore.Copied != 6 || out.Run.Restore.Failed != 0 {
		t.Fatalf("unexpected restore summary %+v", out.Run.Restore)
	}

	for name, rel := range f.names {
		orig, err := os.ReadFile(filepath.Join(f.original, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatal(err)
		}
		restored, err := os.ReadFile(filepath.Join(f.output, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("%s (%s) not restored: %v", rel, name, err)
		}
		if !bytes.Equal(orig, restored) {
			t.Fatalf("%s restored with different content", rel)
		}
	}

	if out.Evaluation == nil {
		t.Fatal("expected mapping evaluation")
	}
	if out.Evaluation.Correct != 6 || out.Evaluation.Incorrect != 0 {
		t.Fatalf("unexpected evaluation %+v", *out.Evaluation)
	}

	reasons := make(map[string]matcher.Reason)
	for _, u := range out.Result.Unmatched {
		reasons[u.FlattenedPath] = u.Reason
	}
	if reasons["broken.pdf"] != matcher.ReasonUnknownPageCount || reasons["stray-five.pdf"] != matcher.ReasonNoCandidates {
		t.Fatalf("unexpected unmatched reasons %v", reasons)
	}
	if len(out.Result.Ambiguous) != 1 || out.Result.Ambiguous[0].FlattenedPath != "stray-four.pdf" {
		t.Fatalf("unexpected ambiguous entries %+v", out.Result.Ambiguous)
	}
	if got := out.Result.Ambiguous[0].Candidates; !reflect.DeepEqual(got, []string{"forms/alpha.pdf", "forms/beta.pdf"}) {
		t.Fatalf("candidates = %v", got)
	}
}

func TestRunDryRunLeavesOutputUntouched(t *testing.T) {
	f := newFixture(t)
	out := runPipeline(t, f.cfg, f.request(false))

	if len(out.Plan) != 6 {
		t.Fatalf("expected 6 planned copies, got %d", len(out.Plan))
	}
	if out.Run.Restore.Planned != 6 || out.Run.Restore.Copied != 0 {
		t.Fatalf("unexpected dry-run summary %+v", out.Run.Restore)
	}
	if _, err := os.Stat(f.output); !os.IsNotExist(err) {
		t.Fatalf("dry run created output root: %v", err)
	}
}

func TestRunRecordsHistory(t *testing.T) {
	f := newFixture(t)
	out := runPipeline(t, f.cfg, f.request(false))

	store, err := report.OpenFromConfig(f.cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != out.Run.ID {
		t.Fatalf("unexpected runs %+v", runs)
	}
	ambiguous, err := store.Results(context.Background(), out.Run.ID, report.StateAmbiguous)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if len(ambiguous) != 1 {
		t.Fatalf("expected one ambiguous row, got %d", len(ambiguous))
	}
}

func TestRunWithoutReportSkipsHistory(t *testing.T) {
	f := newFixture(t, testsupport.WithoutReport())
	runPipeline(t, f.cfg, f.request(false))
	if _, err := os.Stat(f.cfg.ReportDBPath()); !os.IsNotExist(err) {
		t.Fatalf("expected no run database, got %v", err)
	}
}

func TestLazyAndEagerSignaturesAgree(t *testing.T) {
	f := newFixture(t)
	lazy := runPipeline(t, f.cfg, f.request(false))

	eagerCfg := *f.cfg
	eagerCfg.Scan.LazySignatures = false
	eagerCfg.Scan.CacheEnabled = false
	eager := runPipeline(t, &eagerCfg, f.request(false))

	if !reflect.DeepEqual(lazy.Result, eager.Result) {
		t.Fatalf("lazy and eager results differ:\n%+v\n%+v", lazy.Result, eager.Result)
	}
}

func TestSecondRunReusesCache(t *testing.T) {
	f := newFixture(t)
	first := runPipeline(t, f.cfg, f.request(false))
	second := runPipeline(t, f.cfg, f.request(false))

	if first.OriginalStats.CacheHits != 0 {
		t.Fatalf("first run should extract everything, got %d hits", first.OriginalStats.CacheHits)
	}
	if second.OriginalStats.CacheHits != 6 {
		t.Fatalf("expected 6 cache hits on the original tree, got %d", second.OriginalStats.CacheHits)
	}
	if !reflect.DeepEqual(first.Result, second.Result) {
		t.Fatal("cached run produced a different result")
	}
}

func TestRunMissingRoot(t *testing.T) {
	f := newFixture(t)
	req := f.request(false)
	req.Original = filepath.Join(testsupport.BaseDir(f.cfg), "missing")

	p, err := pipeline.New(f.cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(context.Background(), req); err == nil {
		t.Fatal("expected error for missing original root")
	}
}

func TestNewRejectsUnknownStrategy(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Matching.Strategy = []string{"smell"}
	if _, err := pipeline.New(cfg, nil); err == nil {
		t.Fatal("expected error for unknown strategy kind")
	}
}
