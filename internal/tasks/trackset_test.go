package tasks

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestTrackSet(t *testing.T) {
	t.Run("Add reports first insertion", func(t *testing.T) {
		s := NewTrackSet()
		if !s.Add("a") || s.Add("a") || !s.Add("b") {
			t.Error("expected add-if-absent semantics")
		}
		if s.Len() != 2 || !s.Contains("a") || s.Contains("c") {
			t.Errorf("unexpected set state, len %d", s.Len())
		}
	})

	t.Run("concurrent adds accept each id once", func(t *testing.T) {
		s := NewTrackSet()
		var accepted atomic.Int64
		var wg sync.WaitGroup
		for w := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range 100 {
					if s.Add(fmt.Sprintf("id-%d", (i+w)%100)) {
						accepted.Add(1)
					}
				}
			}()
		}
		wg.Wait()

		if accepted.Load() != 100 || s.Len() != 100 {
			t.Errorf("expected 100 accepted ids, got %d (len %d)", accepted.Load(), s.Len())
		}
	})
}

func TestChunk(t *testing.T) {
	items := make([]int, 250)
	for i := range items {
		items[i] = i
	}

	chunks := Chunk(items, 100)
	if len(chunks) != 3 || len(chunks[0]) != 100 || len(chunks[2]) != 50 {
		t.Fatalf("unexpected chunk sizes %d", len(chunks))
	}
	if chunks[1][0] != 100 || chunks[2][49] != 249 {
		t.Error("chunks should preserve order")
	}
	if Chunk([]int{}, 100) != nil {
		t.Error("empty input should produce no chunks")
	}
}
