// Package matcher classifies flattened files against an original tree.
//
// Every flattened file ends in exactly one of four classes: unique (the only
// original with its page count), resolved (a content signature cleared its
// threshold within a shared page-count bucket), ambiguous (no signature could
// separate the candidates), or unmatched (unknown page count or no original
// with that count). Assignment is greedy per file; two flattened files may
// resolve to the same original.
package matcher
