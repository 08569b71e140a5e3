package bufpool

import (
	"testing"
)

func TestBufferPoolGetPut(t *testing.T) {
	// Get a buffer from the pool
	buf1 := Get()

	// Verify the buffer is empty with the pool's capacity
	if cap(buf1) != BufferSize {
		t.Errorf("Expected buffer capacity of %d, got %d", BufferSize, cap(buf1))
	}

	// Write some data to the buffer
	buf1 = append(buf1, 42)

	// Return the buffer to the pool
	Put(buf1)

	// Get another buffer, which should be the same one we just returned
	buf2 := Get()

	// Buffer may or may not be cleared, but we should be able to use it
	// Let's check if we have the expected buffer capacity
	if cap(buf2) != BufferSize {
		t.Errorf("Expected buffer capacity of %d, got %d", BufferSize, cap(buf2))
	}
}

func TestMultipleBuffers(t *testing.T) {
	// Get multiple buffers at once to ensure the pool can handle it
	const numBuffers = 10
	buffers := make([]B, numBuffers)

	// Get buffers from the pool
	for i := 0; i < numBuffers; i++ {
		buffers[i] = Get()
		// Verify each buffer has the pool's capacity
		if cap(buffers[i]) != BufferSize {
			t.Errorf(
				"Buffer %d: Expected capacity of %d, got %d", i, BufferSize,
				cap(buffers[i]),
			)
		}
	}

	// Return all buffers to the pool
	for i := 0; i < numBuffers; i++ {
		Put(buffers[i])
	}
}

func BenchmarkGetPut(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := Get()
		Put(buf)
	}
}

func BenchmarkGetPutParallel(b *testing.B) {
	b.RunParallel(
		func(pb *testing.PB) {
			for pb.Next() {
				buf := Get()
				Put(buf)
			}
		},
	)
}
