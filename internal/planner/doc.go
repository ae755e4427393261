// Package planner computes chunk layouts for multipart uploads.
// Part sizing derives from the object size and a target part count,
// clamped to configured bounds; the final part absorbs any remainder so
// the plan always covers the object exactly.
//
// Planning is pure computation. It performs no I/O and never contacts a
// backend, so the same plan can be replayed against every target.
package planner
