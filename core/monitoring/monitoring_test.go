package monitoring

import (
	"errors"
	"testing"
	"time"
)

type recordMonitor struct {
	errs      []error
	recovered any
}

func (r *recordMonitor) CaptureException(err error, _ map[string]string) {
	r.errs = append(r.errs, err)
}
func (r *recordMonitor) Flush(time.Duration) {}
func (r *recordMonitor) CapturePanic(v any)  { r.recovered = v }

func TestCaptureException(t *testing.T) {
	m := &recordMonitor{}
	Init(m)
	defer Init(NopMonitor{})

	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"module": "test"})
	if len(m.errs) != 1 {
		t.Fatalf("expected 1 captured error, got %d", len(m.errs))
	}
}

func TestRecoverRepanics(t *testing.T) {
	m := &recordMonitor{}
	Init(m)
	defer Init(NopMonitor{})

	defer func() {
		if r := recover(); r != "kaboom" {
			t.Fatalf("expected re-panic, got %v", r)
		}
		if m.recovered != "kaboom" {
			t.Fatalf("panic not reported")
		}
	}()
	func() {
		defer Recover()
		panic("kaboom")
	}()
}
