// Package similarity scores pairs of signatures of the same kind on [0,1],
// where 1 means identical and 0 means dissimilar or incomparable.
package similarity
