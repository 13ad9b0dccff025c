package pool

import (
	"sync"
	"testing"
)

// =============================================================================
// Configuration Tests
// =============================================================================

func TestConfigure(t *testing.T) {
	origConfig := globalConfig
	defer func() {
		Configure(origConfig)
	}()

	t.Run("enable pooling", func(t *testing.T) {
		Configure(PoolConfig{Enabled: true, MaxSize: 500})

		if !IsEnabled() {
			t.Error("IsEnabled() = false, want true")
		}
		if globalConfig.MaxSize != 500 {
			t.Errorf("MaxSize = %d, want 500", globalConfig.MaxSize)
		}
	})

	t.Run("disable pooling", func(t *testing.T) {
		Configure(PoolConfig{Enabled: false, MaxSize: 1000})

		if IsEnabled() {
			t.Error("IsEnabled() = true, want false")
		}
		s := GetScoreSlice()
		if len(s) != 0 {
			t.Errorf("len = %d, want 0", len(s))
		}
		PutScoreSlice(s)
	})
}

// =============================================================================
// Score Slice Pool Tests
// =============================================================================

func TestScoreSlicePool(t *testing.T) {
	origConfig := globalConfig
	defer Configure(origConfig)
	Configure(PoolConfig{Enabled: true, MaxSize: 128})

	t.Run("get returns empty slice", func(t *testing.T) {
		s := GetScoreSlice()
		if len(s) != 0 {
			t.Errorf("len = %d, want 0", len(s))
		}
		if cap(s) == 0 {
			t.Error("expected preallocated capacity")
		}
		PutScoreSlice(s)
	})

	t.Run("reused slice is reset", func(t *testing.T) {
		s := GetScoreSlice()
		s = append(s, 1, 2, 3)
		PutScoreSlice(s)

		s2 := GetScoreSlice()
		if len(s2) != 0 {
			t.Errorf("len = %d after reuse, want 0", len(s2))
		}
		PutScoreSlice(s2)
	})

	t.Run("oversized slice not pooled", func(t *testing.T) {
		big := make([]float64, 0, 1024)
		PutScoreSlice(big) // must not panic
	})
}

// =============================================================================
// Byte Buffer Pool Tests
// =============================================================================

func TestByteBufferPool(t *testing.T) {
	t.Run("get returns empty buffer", func(t *testing.T) {
		buf := GetByteBuffer()
		if len(buf) != 0 {
			t.Errorf("len = %d, want 0", len(buf))
		}
		buf = append(buf, "0.25"...)
		PutByteBuffer(buf)
	})

	t.Run("huge buffer dropped", func(t *testing.T) {
		PutByteBuffer(make([]byte, 0, 2*1024*1024))
	})
}

func TestConcurrentPoolAccess(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := GetScoreSlice()
				s = append(s, float64(n), float64(j))
				PutScoreSlice(s)

				b := GetByteBuffer()
				b = append(b, byte(n))
				PutByteBuffer(b)
			}
		}(i)
	}
	wg.Wait()
}
