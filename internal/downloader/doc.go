// Package downloader restores objects from a single backend onto the local
// filesystem.
//
// Objects are read as a sequence of fixed-size byte ranges rather than one
// long stream, so a transient failure costs at most one chunk and progress
// ticks at chunk granularity. Each chunk rewinds the destination file before
// a retry, and any failure removes the partial file; callers never observe
// a half-written destination.
package downloader
