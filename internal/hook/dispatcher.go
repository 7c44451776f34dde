package hook

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the number of events buffered before new ones are
// dropped.
const DefaultQueueSize = 32

// Dispatcher delivers events to matching hooks from a single background
// goroutine, so hooks see events in the order they happened and never
// block tracking or streaming.
type Dispatcher struct {
	manager  *Manager
	executor *Executor

	queue   chan Event
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	ran     atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// NewDispatcher starts a Dispatcher. Close must be called to stop it.
func NewDispatcher(manager *Manager, executor *Executor, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		manager:  manager,
		executor: executor,
		queue:    make(chan Event, queueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	d.wg.Add(1)
	go d.loop()
	return d
}

// Dispatch queues event. It never blocks; a full queue drops the event.
func (d *Dispatcher) Dispatch(event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}
	select {
	case d.queue <- event:
	default:
		d.dropped.Add(1)
		log.Printf("Hook queue full, dropping %s event", event.Type)
	}
}

// Status is a snapshot of the dispatcher for the status endpoint.
type Status struct {
	Dir     string `json:"dir"`
	Hooks   int    `json:"hooks"`
	Timeout string `json:"timeout"`
	Queued  int    `json:"queued"`
	Ran     uint64 `json:"ran"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
}

// Status reports the hook directory, the discovered hooks and how many runs
// succeeded, failed or were dropped.
func (d *Dispatcher) Status() Status {
	return Status{
		Dir:     d.manager.Dir(),
		Hooks:   len(d.manager.List()),
		Timeout: d.executor.Timeout().String(),
		Queued:  len(d.queue),
		Ran:     d.ran.Load(),
		Failed:  d.failed.Load(),
		Dropped: d.dropped.Load(),
	}
}

// Close delivers the queued events and stops the dispatcher. A hook still
// running when Close is called keeps its own timeout.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()

	for event := range d.queue {
		for _, h := range d.manager.For(event.Type) {
			resp, err := d.executor.Execute(d.ctx, h, &event)
			switch {
			case err != nil:
				d.failed.Add(1)
				log.Printf("Hook %s on %s: %v", h.Manifest.Name, event.Type, err)
			case !resp.Success:
				d.failed.Add(1)
				log.Printf("Hook %s on %s reported failure: %s", h.Manifest.Name, event.Type, resp.Error)
			default:
				d.ran.Add(1)
			}
		}
	}
}
