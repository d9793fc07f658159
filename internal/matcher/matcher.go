package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/sourcegraph/conc/pool"

	"unflatten/internal/fingerprint"
	"unflatten/internal/logging"
	"unflatten/internal/scanner"
	"unflatten/internal/similarity"
)

// buckets maps a page count to the original records sharing it, in table order.
type buckets map[int][]fingerprint.Record

func buildBuckets(original *scanner.Table) buckets {
	b := make(buckets)
	for _, rec := range original.Records() {
		if !rec.PagesKnown() {
			continue
		}
		b[rec.PageCount] = append(b[rec.PageCount], rec)
	}
	return b
}

// needsContent reports whether a bucket of size n is settled by content.
func (p Policy) needsContent(n int) bool {
	return n > 1 || (n == 1 && p.StrictUnique)
}

// Pending lists the flattened and original paths whose content signatures
// the resolution phase will read. Files settled by page count alone are
// omitted. Both lists are sorted.
func Pending(flattened, original *scanner.Table, policy Policy) (flat []string, orig []string) {
	policy = policy.normalized()
	b := buildBuckets(original)
	origSet := make(map[string]struct{})
	for _, rec := range flattened.Records() {
		if !rec.PagesKnown() {
			continue
		}
		candidates := b[rec.PageCount]
		if !policy.needsContent(len(candidates)) {
			continue
		}
		flat = append(flat, rec.RelPath)
		for _, c := range candidates {
			origSet[c.RelPath] = struct{}{}
		}
	}
	for path := range origSet {
		orig = append(orig, path)
	}
	sort.Strings(orig)
	return flat, orig
}

// deferred is a flattened file awaiting content resolution.
type deferred struct {
	record     fingerprint.Record
	candidates []fingerprint.Record
}

// outcome is the resolution of one deferred file.
type outcome struct {
	match     *MatchResult
	ambiguous *AmbiguousEntry
	// unique marks a lone candidate confirmed by content under StrictUnique.
	unique bool
}

// Match classifies every flattened record against the original table.
//
// Page count selects the candidate bucket. Empty buckets and unknown page
// counts are unmatched; single-candidate buckets match outright unless the
// policy is strict. Larger buckets are scored kind by kind in strategy order;
// the first kind whose best score reaches its threshold decides the match,
// and the earliest candidate in table order wins ties. Buckets no kind can
// settle stay ambiguous with every candidate listed.
func Match(ctx context.Context, flattened, original *scanner.Table, policy Policy, logger *slog.Logger) (Result, error) {
	policy = policy.normalized()
	logger = logging.NewComponentLogger(logger, "matcher")
	b := buildBuckets(original)

	var result Result
	var pending []deferred
	for _, rec := range flattened.Records() {
		if !rec.PagesKnown() {
			result.Unmatched = append(result.Unmatched, UnmatchedEntry{
				FlattenedPath: rec.RelPath,
				PageCount:     rec.PageCount,
				Reason:        ReasonUnknownPageCount,
			})
			continue
		}
		candidates := b[rec.PageCount]
		switch {
		case len(candidates) == 0:
			result.Unmatched = append(result.Unmatched, UnmatchedEntry{
				FlattenedPath: rec.RelPath,
				PageCount:     rec.PageCount,
				Reason:        ReasonNoCandidates,
			})
		case !policy.needsContent(len(candidates)):
			result.Unique = append(result.Unique, MatchResult{
				FlattenedPath: rec.RelPath,
				OriginalPath:  candidates[0].RelPath,
				Method:        MethodUniquePageCount,
				Confidence:    1.0,
				PageCount:     rec.PageCount,
			})
		default:
			pending = append(pending, deferred{record: rec, candidates: candidates})
		}
	}

	outcomes := make([]outcome, len(pending))
	p := pool.New().WithMaxGoroutines(policy.Workers).WithContext(ctx)
	for i, d := range pending {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcomes[i] = resolve(d, policy)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return Result{}, fmt.Errorf("resolve ambiguous buckets: %w", err)
	}

	for i, out := range outcomes {
		d := pending[i]
		switch {
		case out.match != nil && out.unique:
			result.Unique = append(result.Unique, *out.match)
			logDecision(logger, d, "unique", "content confirmed single candidate")
		case out.match != nil:
			result.Resolved = append(result.Resolved, *out.match)
			logDecision(logger, d, "resolved", fmt.Sprintf("%s score %.4f", out.match.Kind, out.match.Confidence))
		default:
			result.Ambiguous = append(result.Ambiguous, *out.ambiguous)
			logDecision(logger, d, "ambiguous", fmt.Sprintf("best score %.4f below threshold", out.ambiguous.BestScore))
		}
	}

	sortResult(&result)
	return result, nil
}

// resolve scores a deferred file against its candidates.
func resolve(d deferred, policy Policy) outcome {
	params := policy.Params()
	overallScore := -1.0
	var overallPath string
	var overallKind fingerprint.Kind

	for _, kind := range policy.Strategy {
		sig, ok := d.record.Signature(kind)
		if !ok || sig.Empty() {
			continue
		}
		best := -1.0
		var bestPath string
		for _, cand := range d.candidates {
			other, ok := cand.Signature(kind)
			if !ok {
				continue
			}
			score := similarity.Compare(sig, other, params)
			if score > best {
				best = score
				bestPath = cand.RelPath
			}
		}
		if best < 0 {
			continue
		}
		if best > overallScore {
			overallScore, overallPath, overallKind = best, bestPath, kind
		}
		if best >= policy.Threshold(kind) {
			// The method names the signature that decided, so the confidence
			// is always that signature's score.
			return outcome{match: &MatchResult{
				FlattenedPath: d.record.RelPath,
				OriginalPath:  bestPath,
				Method:        methodFor(kind),
				Confidence:    best,
				Kind:          kind,
				PageCount:     d.record.PageCount,
			}, unique: len(d.candidates) == 1}
		}
	}

	paths := make([]string, len(d.candidates))
	for i, cand := range d.candidates {
		paths[i] = cand.RelPath
	}
	entry := &AmbiguousEntry{
		FlattenedPath: d.record.RelPath,
		Candidates:    paths,
		PageCount:     d.record.PageCount,
	}
	if overallScore >= 0 {
		entry.BestPath = overallPath
		entry.BestScore = overallScore
		entry.BestKind = overallKind
	}
	return outcome{ambiguous: entry}
}

func sortResult(r *Result) {
	sort.SliceStable(r.Unique, func(i, j int) bool { return r.Unique[i].FlattenedPath < r.Unique[j].FlattenedPath })
	sort.SliceStable(r.Resolved, func(i, j int) bool { return r.Resolved[i].FlattenedPath < r.Resolved[j].FlattenedPath })
	sort.SliceStable(r.Ambiguous, func(i, j int) bool { return r.Ambiguous[i].FlattenedPath < r.Ambiguous[j].FlattenedPath })
	sort.SliceStable(r.Unmatched, func(i, j int) bool { return r.Unmatched[i].FlattenedPath < r.Unmatched[j].FlattenedPath })
}

func logDecision(logger *slog.Logger, d deferred, result, reason string) {
	attrs := logging.DecisionAttrs("bucket_resolution", result, reason)
	attrs = append(attrs,
		logging.String(logging.FieldPath, d.record.RelPath),
		logging.Int("page_count", d.record.PageCount),
		logging.Int("candidates", len(d.candidates)))
	logger.Debug("bucket resolved", logging.Args(attrs...)...)
}
