package proxy

import (
	"net/http/httputil"
	"sync"
)

const bufferSize = 32 * 1024

// bufferPool recycles the copy buffers of httputil.ReverseProxy.
type bufferPool struct {
	pool sync.Pool
}

var _ httputil.BufferPool = (*bufferPool)(nil)

func newBufferPool() *bufferPool {
	return &bufferPool{
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, bufferSize)
				return &b
			},
		},
	}
}

func (p *bufferPool) Get() []byte {
	return *(p.pool.Get().(*[]byte))
}

func (p *bufferPool) Put(b []byte) {
	if cap(b) < bufferSize {
		return
	}
	b = b[:bufferSize]
	p.pool.Put(&b)
}
