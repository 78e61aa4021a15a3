// Package hitstore implements HitStore (spec.md §4.1): the per-time-slice
// owner of the immutable hit array and stream boundaries, its builder,
// and the binary archive format of §6 used to persist an InputData block.
package hitstore
