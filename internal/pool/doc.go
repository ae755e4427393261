// Package pool provides memory management optimizations.
// Chunk buffers used by ranged downloads are pooled and reused so
// high-throughput transfers do not churn the allocator.
package pool
