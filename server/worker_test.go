package server

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestWorkerDo(t *testing.T) {
	w := NewWorker()
	defer w.Stop()

	v, err := w.Do(func() (interface{}, error) { return 42, nil })
	if err != nil || v != 42 {
		t.Errorf("Do = %v, %v, want 42, nil", v, err)
	}

	boom := errors.New("boom")
	if _, err := w.Do(func() (interface{}, error) { return nil, boom }); err != boom {
		t.Errorf("Do error = %v, want %v", err, boom)
	}
}

func TestWorkerRecoversPanics(t *testing.T) {
	w := NewWorker()
	defer w.Stop()

	_, err := w.Do(func() (interface{}, error) { panic("bad state") })
	if err == nil || !strings.Contains(err.Error(), "bad state") {
		t.Errorf("Do error = %v, want recovered panic", err)
	}
	if v, err := w.Do(func() (interface{}, error) { return "alive", nil }); err != nil || v != "alive" {
		t.Errorf("worker unusable after panic: %v, %v", v, err)
	}
}

func TestWorkerSerializes(t *testing.T) {
	w := NewWorker()
	defer w.Stop()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Do(func() (interface{}, error) {
				counter++
				return nil, nil
			})
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}

func TestWorkerStop(t *testing.T) {
	w := NewWorker()
	w.Stop()
	w.Stop()
	if _, err := w.Do(func() (interface{}, error) { return nil, nil }); err != ErrWorkerStopped {
		t.Errorf("Do after Stop = %v, want %v", err, ErrWorkerStopped)
	}
}
