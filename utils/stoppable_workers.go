// Package utils contains goroutine ownership helpers shared by the location backends.
package utils

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// StoppableWorkers owns a group of goroutines that share one cancelable context. Backends use it
// for their read loops and tickers so that Close can cancel and wait for all of them at once.
type StoppableWorkers interface {
	AddWorkers(...func(context.Context))
	Stop()
	Stopped() bool
	Context() context.Context
}

type stoppableWorkersImpl struct {
	mu         sync.Mutex
	cancelCtx  context.Context
	cancelFunc func()
	workers    sync.WaitGroup
}

// NewStoppableWorkers starts each function in its own panic capturing goroutine.
func NewStoppableWorkers(funcs ...func(context.Context)) StoppableWorkers {
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	sw := &stoppableWorkersImpl{cancelCtx: cancelCtx, cancelFunc: cancelFunc}
	sw.AddWorkers(funcs...)
	return sw
}

// AddWorkers starts more goroutines. It is a no-op once Stop has been called.
func (sw *stoppableWorkersImpl) AddWorkers(funcs ...func(context.Context)) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.cancelCtx.Err() != nil {
		return
	}

	sw.workers.Add(len(funcs))
	for _, f := range funcs {
		goutils.PanicCapturingGo(func() {
			defer sw.workers.Done()
			f(sw.cancelCtx)
		})
	}
}

// Stop cancels the shared context and waits for every worker to return. Calling it from inside
// a worker deadlocks.
func (sw *stoppableWorkersImpl) Stop() {
	sw.mu.Lock()
	sw.cancelFunc()
	sw.mu.Unlock()

	sw.workers.Wait()
}

func (sw *stoppableWorkersImpl) Stopped() bool {
	return sw.cancelCtx.Err() != nil
}

// Context is the context workers observe. Most callers never need it.
func (sw *stoppableWorkersImpl) Context() context.Context {
	return sw.cancelCtx
}
