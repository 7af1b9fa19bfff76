package stream

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitioner_Dispatch(t *testing.T) {
	t.Run("Keeps the order of messages with the same key", func(t *testing.T) {
		var mu sync.Mutex
		seen := make(map[string][]string)
		p := NewPartitioner(4, 16, func(msg Message) {
			mu.Lock()
			defer mu.Unlock()
			seen[msg.Key] = append(seen[msg.Key], string(msg.Value))
		})

		keys := []string{"a", "b", "c", "d", "e"}
		for i := 0; i < 50; i++ {
			for _, key := range keys {
				p.Dispatch(Message{Key: key, Value: []byte(fmt.Sprintf("%d", i))})
			}
		}
		waitForCount(t, &mu, seen, len(keys)*50)
		p.Stop()

		for _, key := range keys {
			assert.Len(t, seen[key], 50)
			for i, value := range seen[key] {
				assert.Equal(t, fmt.Sprintf("%d", i), value)
			}
		}
	})

	t.Run("Routes a key to a stable partition", func(t *testing.T) {
		p := NewPartitioner(8, 1, func(msg Message) {})
		defer p.Stop()
		assert.Equal(t, p.PartitionFor("landscape-1"), p.PartitionFor("landscape-1"))
		assert.Less(t, p.PartitionFor("landscape-1"), p.Partitions())
	})

	t.Run("Falls back to one partition", func(t *testing.T) {
		p := NewPartitioner(0, 0, func(msg Message) {})
		defer p.Stop()
		assert.Equal(t, 1, p.Partitions())
		assert.Equal(t, 0, p.PartitionFor("anything"))
	})
}

func TestPartitioner_Stop(t *testing.T) {
	t.Run("Finishes the current message and discards the queue", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		var handled []string
		p := NewPartitioner(1, 8, func(msg Message) {
			if string(msg.Value) == "first" {
				close(started)
				<-release
			}
			handled = append(handled, string(msg.Value))
		})

		p.Dispatch(Message{Key: "k", Value: []byte("first")})
		<-started
		p.Dispatch(Message{Key: "k", Value: []byte("second")})
		p.Dispatch(Message{Key: "k", Value: []byte("third")})

		done := make(chan int)
		go func() {
			done <- p.Stop()
		}()
		assert.Eventually(t, func() bool {
			select {
			case <-p.stop:
				return true
			default:
				return false
			}
		}, testTimeout, testTick)
		close(release)
		discarded := <-done

		assert.Equal(t, []string{"first"}, handled)
		assert.Equal(t, 2, discarded)
	})

	t.Run("Ignores dispatches after stopping", func(t *testing.T) {
		calls := 0
		p := NewPartitioner(2, 1, func(msg Message) { calls++ })
		p.Stop()
		p.Dispatch(Message{Key: "k"})
		assert.Equal(t, 0, calls)
		assert.Equal(t, 1, p.Stop())
	})
}

func waitForCount(t *testing.T, mu *sync.Mutex, seen map[string][]string, expected int) {
	t.Helper()
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		total := 0
		for _, values := range seen {
			total += len(values)
		}
		return total == expected
	}, testTimeout, testTick)
}
