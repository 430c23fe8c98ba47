package core

import (
	"sync"

	"github.com/gammazero/workerpool"
)

// Invoker stands in for a thread-per-frame model: decode work for one
// peer connection must stay in FIFO order even though work across
// connections runs in parallel, so each live peer gets its own
// single-worker lane instead of a raw goroutine per read.
type Invoker struct {
	mu    sync.Mutex
	lanes map[PeerID]*workerpool.WorkerPool
}

// NewInvoker builds an Invoker with no live lanes.
func NewInvoker() *Invoker {
	return &Invoker{
		lanes: make(map[PeerID]*workerpool.WorkerPool),
	}
}

// SubmitSerial queues f onto the per-peer lane for id, creating the lane
// if necessary. All SubmitSerial calls for the same id run strictly in
// submission order; calls for different ids may run concurrently.
func (i *Invoker) SubmitSerial(id PeerID, f func()) {
	i.mu.Lock()
	lane, ok := i.lanes[id]
	if !ok {
		lane = workerpool.New(1)
		i.lanes[id] = lane
	}
	i.mu.Unlock()
	lane.Submit(f)
}

// DropLane releases the per-peer lane for id once the peer is evicted.
// Already-queued work still runs; the lane is torn down once drained.
func (i *Invoker) DropLane(id PeerID) {
	i.mu.Lock()
	lane, ok := i.lanes[id]
	delete(i.lanes, id)
	i.mu.Unlock()
	if ok {
		go lane.StopWait()
	}
}

// Stop drains every live lane, blocking until all queued work has run.
func (i *Invoker) Stop() {
	i.mu.Lock()
	lanes := make([]*workerpool.WorkerPool, 0, len(i.lanes))
	for _, lane := range i.lanes {
		lanes = append(lanes, lane)
	}
	i.lanes = make(map[PeerID]*workerpool.WorkerPool)
	i.mu.Unlock()

	for _, lane := range lanes {
		lane.StopWait()
	}
}
