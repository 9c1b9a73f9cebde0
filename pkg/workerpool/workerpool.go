// Package workerpool runs batches of independent block operations on a
// fixed set of workers. Batch results keep submission order regardless
// of completion order, so callers can map result i back to input i.
package workerpool

import (
	"runtime"
	"sync"
)

type Config struct {
	// Workers is the number of goroutines draining the shared queue.
	// Values below 1 default to the CPU count.
	Workers int
	// QueueDepth bounds the shared task queue. Values below 1 default
	// to 1024.
	QueueDepth int
}

// Pool is a fixed set of workers fed from one shared queue. Independent
// batches share the workers without interleaving their results.
type Pool struct {
	cfg       Config
	tasks     chan task
	closeOnce sync.Once
}

type task struct {
	run  func() (interface{}, error)
	room *Room
	idx  int
}

func New(cfg Config) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.QueueDepth < 1 {
		cfg.QueueDepth = 1024
	}

	p := &Pool{
		cfg:   cfg,
		tasks: make(chan task, cfg.QueueDepth),
	}
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for t := range p.tasks {
		res, err := t.run()
		t.room.deliver(t.idx, res, err)
	}
}

// Close stops the workers once the queue drains. Submitting after Close
// panics; callers own that ordering.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
	})
}

// NewRoom opens a result collector for one batch of tasks.
func (p *Pool) NewRoom() *Room {
	return &Room{pool: p}
}

// Room collects one batch's results in submission order. Submit is not
// safe for concurrent use; Wait may be called once after all submits.
type Room struct {
	pool    *Pool
	wg      sync.WaitGroup
	mu      sync.Mutex
	results []interface{}
	err     error
}

func (r *Room) Submit(job func() (interface{}, error)) {
	r.mu.Lock()
	idx := len(r.results)
	r.results = append(r.results, nil)
	r.mu.Unlock()

	r.wg.Add(1)
	r.pool.tasks <- task{run: job, room: r, idx: idx}
}

func (r *Room) deliver(idx int, res interface{}, err error) {
	r.mu.Lock()
	r.results[idx] = res
	if err != nil && r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
	r.wg.Done()
}

// Wait blocks until every submitted task finished and returns the
// results in submission order. The first error observed wins; results
// for failed tasks are nil.
func (r *Room) Wait() ([]interface{}, error) {
	r.wg.Wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.results, nil
}
