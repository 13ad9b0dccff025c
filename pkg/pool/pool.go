// Package pool provides scratch-buffer pooling for feature extraction.
//
// Extracting features for thousands of edges allocates the same short-lived
// buffers over and over: per-formula score lists while aggregating a
// neighbourhood, and byte buffers while formatting rows of the feature and
// prediction files. Pooling them keeps GC pressure flat.
//
// Usage:
//
//	scores := pool.GetScoreSlice()
//	defer pool.PutScoreSlice(scores)
//
//	scores = append(scores, s)
package pool

import (
	"sync"
)

// PoolConfig configures pooling behavior.
type PoolConfig struct {
	// Enabled controls whether pooling is active
	Enabled bool

	// MaxSize is the largest slice capacity returned to a pool
	MaxSize int
}

var globalConfig = PoolConfig{
	Enabled: true,
	MaxSize: 1 << 16,
}

// Configure sets global pool configuration.
// Should be called early during initialization.
func Configure(config PoolConfig) {
	globalConfig = config
	initPools()
}

func initPools() {
	scoreSlicePool = sync.Pool{
		New: func() any {
			return make([]float64, 0, 64)
		},
	}
	byteBufferPool = sync.Pool{
		New: func() any {
			return make([]byte, 0, 1024)
		},
	}
}

// IsEnabled returns whether pooling is enabled.
func IsEnabled() bool {
	return globalConfig.Enabled
}

// =============================================================================
// Score Slice Pool
// =============================================================================

var scoreSlicePool = sync.Pool{
	New: func() any {
		return make([]float64, 0, 64)
	},
}

// GetScoreSlice returns an empty float64 slice from the pool.
// Call PutScoreSlice when done.
func GetScoreSlice() []float64 {
	if !globalConfig.Enabled {
		return make([]float64, 0, 64)
	}
	return scoreSlicePool.Get().([]float64)[:0]
}

// PutScoreSlice returns a score slice to the pool.
func PutScoreSlice(s []float64) {
	if !globalConfig.Enabled {
		return
	}
	if cap(s) > globalConfig.MaxSize {
		return
	}
	scoreSlicePool.Put(s[:0])
}

// =============================================================================
// Byte Buffer Pool
// =============================================================================

var byteBufferPool = sync.Pool{
	New: func() any {
		return make([]byte, 0, 1024)
	},
}

// GetByteBuffer returns an empty byte buffer from the pool.
func GetByteBuffer() []byte {
	if !globalConfig.Enabled {
		return make([]byte, 0, 1024)
	}
	return byteBufferPool.Get().([]byte)[:0]
}

// PutByteBuffer returns a byte buffer to the pool.
func PutByteBuffer(buf []byte) {
	if !globalConfig.Enabled {
		return
	}
	if cap(buf) > 1024*1024 { // Don't pool huge buffers (>1MB)
		return
	}
	byteBufferPool.Put(buf[:0])
}
