package state

import (
	"fmt"
	"time"
)

// Dispatch queues the function to run on the dispatch goroutine
// without waiting for it to complete.
func (e *Env) Dispatch(fun func(*State) error) {
	defer func() {
		if r := recover(); r != nil {
			e.Cancel(fmt.Errorf("panic: %v", r))
		}
	}()
	select {
	case e.DispatchChannel <- fun:
	case <-e.Context.Done():
	}
}

// DispatchWait queues the function to run on the dispatch goroutine
// and waits for its result.
func (e *Env) DispatchWait(fun func(*State) (any, error)) (any, error) {
	ret := make(chan Pair[any, error], 1)
	e.Dispatch(func(s *State) error {
		res, err := fun(s)
		ret <- Pair[any, error]{res, err}
		return err
	})
	select {
	case res := <-ret:
		return res.V1, res.V2
	case <-e.Context.Done():
		return nil, e.Context.Err()
	}
}

func (e *Env) ScheduleTask(fun func(*State) error, delay time.Duration) {
	go func() {
		select {
		case <-time.After(delay):
			e.Dispatch(fun)
		case <-e.Context.Done():
		}
	}()
}

func (e *Env) repeatedTask(fun func(*State) error, delay time.Duration) {
	for {
		e.Dispatch(fun)
		select {
		case <-time.After(delay):
		case <-e.Context.Done():
			return
		}
	}
}

func (e *Env) RepeatTask(fun func(*State) error, delay time.Duration) {
	go e.repeatedTask(fun, delay)
}
