package util

import "sync"

// DefaultBufSize is the size of pooled read buffers (32 KiB).
const DefaultBufSize = 32 * 1024

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, DefaultBufSize)
		return &b
	},
}

// ReadBuffer returns a scratch buffer of exactly n bytes and the
// function that gives it back.  Buffers up to DefaultBufSize come from
// a pool; larger ones are allocated.  The buffer must not be used
// after release.
func ReadBuffer(n int) (buf []byte, release func()) {
	if n > DefaultBufSize {
		return make([]byte, n), func() {}
	}
	b := bufPool.Get().(*[]byte)
	return (*b)[:n], func() { bufPool.Put(b) }
}
