package pool

import (
	"sync"
)

// ChunkPool hands out fixed-size byte buffers for chunked transfers.
type ChunkPool struct {
	size int
	pool sync.Pool
}

// NewChunkPool creates a pool of size-byte buffers.
func NewChunkPool(size int) *ChunkPool {
	p := &ChunkPool{size: size}
	p.pool.New = func() interface{} {
		buf := make([]byte, size)
		return &buf
	}
	return p
}

// Size returns the buffer size the pool hands out.
func (p *ChunkPool) Size() int {
	return p.size
}

// Get returns a full-length buffer of the pool's size.
// The caller is responsible for calling Put to return it to the pool.
func (p *ChunkPool) Get() []byte {
	bufPtr := p.pool.Get().(*[]byte)
	return (*bufPtr)[:p.size]
}

// Put returns a buffer to the pool. The buffer should not be used after
// calling Put. Buffers with a different capacity are dropped rather than
// pooled.
func (p *ChunkPool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	buf = buf[:p.size]
	p.pool.Put(&buf)
}
