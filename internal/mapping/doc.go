// Package mapping reads the identifier to original path file written when a
// tree is flattened. It is ground truth for evaluating a run and for looking
// up review lists; matching itself never reads it.
package mapping
