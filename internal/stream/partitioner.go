package stream

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const DefaultQueueSize = 128

// Partitioner fans messages out to a fixed set of workers. Messages with the same key
// always land on the same worker and are handled in dispatch order; different
// partitions run in parallel.
type Partitioner struct {
	queues    []chan Message
	handler   Handler
	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	discarded atomic.Int64
}

func NewPartitioner(partitions int, queueSize int, handler Handler) *Partitioner {
	if partitions < 1 {
		partitions = 1
	}
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	p := &Partitioner{
		queues:  make([]chan Message, partitions),
		handler: handler,
		stop:    make(chan struct{}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan Message, queueSize)
		p.wg.Add(1)
		go p.work(p.queues[i])
	}
	return p
}

func (p *Partitioner) Partitions() int {
	return len(p.queues)
}

func (p *Partitioner) PartitionFor(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(p.queues)))
}

// Dispatch blocks while the target partition is full. After Stop it is a no-op.
func (p *Partitioner) Dispatch(msg Message) {
	select {
	case <-p.stop:
		p.discarded.Add(1)
	case p.queues[p.PartitionFor(msg.Key)] <- msg:
	}
}

// Stop waits for every worker to finish the message it is handling and returns how many
// messages were dropped without being handled.
func (p *Partitioner) Stop() int {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	p.wg.Wait()
	pending := int64(0)
	for _, queue := range p.queues {
		pending += int64(len(queue))
	}
	return int(p.discarded.Load() + pending)
}

func (p *Partitioner) work(queue <-chan Message) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case msg := <-queue:
			select {
			case <-p.stop:
				p.discarded.Add(1)
				return
			default:
			}
			p.handler(msg)
		}
	}
}
