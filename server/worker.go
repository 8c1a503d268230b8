package server

import (
	"errors"
	"fmt"
	"sync"
)

// ErrWorkerStopped is returned by Do once Stop has been called.
var ErrWorkerStopped = errors.New("worker stopped")

// request is a unit of work executed on the worker goroutine.
type request struct {
	fn   func() (interface{}, error)
	done chan result
}

type result struct {
	value interface{}
	err   error
}

// Worker serializes work through a single goroutine. Compilation state is
// not safe for concurrent use, and LSP handlers run concurrently, so every
// handler that analyzes a document goes through the worker.
type Worker struct {
	requests chan request
	quit     chan struct{}
	stop     sync.Once
}

// NewWorker creates a Worker and starts its goroutine.
func NewWorker() *Worker {
	w := &Worker{
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, turning a panic into an error.
func (w *Worker) execute(fn func() (interface{}, error)) (res result) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("worker recovered: %v", r)
			res = result{err: fmt.Errorf("panic: %v", r)}
		}
	}()
	value, err := fn()
	return result{value: value, err: err}
}

// Do runs fn on the worker goroutine and blocks until it completes.
func (w *Worker) Do(fn func() (interface{}, error)) (interface{}, error) {
	select {
	case <-w.quit:
		return nil, ErrWorkerStopped
	default:
	}
	req := request{fn: fn, done: make(chan result, 1)}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *Worker) Stop() {
	w.stop.Do(func() { close(w.quit) })
}
