package covercache

import (
	"bytes"
	"fmt"
	"testing"
	"time"
)

func TestCache(t *testing.T) {
	t.Run("hit returns the stored buffer", func(t *testing.T) {
		cache := New()
		payload := []byte("jpeg bytes")
		cache.Put("https://img/a.jpg", payload)

		got, ok := cache.Get("https://img/a.jpg")
		if !ok || !bytes.Equal(got, payload) {
			t.Errorf("Get = %q,%v want stored payload", got, ok)
		}
	})

	t.Run("aggregate size never exceeds the cap", func(t *testing.T) {
		cache := New()
		chunk := make([]byte, 20*1024*1024)

		for i := 0; i < 4; i++ {
			cache.Put(fmt.Sprintf("https://img/%d.jpg", i), chunk)
			if cache.Size() > 50*1024*1024 {
				t.Fatalf("size %d exceeds 50MB cap after put %d", cache.Size(), i)
			}
		}
		if cache.Len() != 2 {
			t.Errorf("expected 2 surviving entries, got %d", cache.Len())
		}
	})

	t.Run("least recently used is evicted first", func(t *testing.T) {
		cache := New()
		current := time.Now()
		cache.now = func() time.Time { return current }

		chunk := make([]byte, 20*1024*1024)
		cache.Put("a", chunk)
		current = current.Add(time.Second)
		cache.Put("b", chunk)

		// Touch a so b becomes the LRU victim.
		current = current.Add(time.Second)
		cache.Get("a")

		current = current.Add(time.Second)
		cache.Put("c", chunk)

		if _, ok := cache.Get("b"); ok {
			t.Error("b should have been evicted as LRU")
		}
		if _, ok := cache.Get("a"); !ok {
			t.Error("a should have survived (recently used)")
		}
	})

	t.Run("oversized payload is rejected", func(t *testing.T) {
		cache := New()
		cache.Put("huge", make([]byte, 51*1024*1024))
		if cache.Len() != 0 {
			t.Error("payload over 50MB must not be cached")
		}
	})

	t.Run("entries expire after five minutes", func(t *testing.T) {
		cache := New()
		current := time.Now()
		cache.now = func() time.Time { return current }

		cache.Put("a", []byte("x"))
		current = current.Add(6 * time.Minute)

		if _, ok := cache.Get("a"); ok {
			t.Error("expired entry returned as hit")
		}
	})

	t.Run("Cleanup drops expired entries", func(t *testing.T) {
		cache := New()
		cache.Put("a", []byte("x"))
		cache.Cleanup(time.Now().Add(6 * time.Minute))
		if cache.Len() != 0 || cache.Size() != 0 {
			t.Errorf("cleanup left len=%d size=%d", cache.Len(), cache.Size())
		}
	})
}
