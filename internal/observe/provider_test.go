package observe

import (
	"context"
	"testing"
)

// No t.Parallel: Init registers global providers and the Prometheus
// default registry only tolerates one registration per process.
func TestInit_ShutdownFlushes(t *testing.T) {
	shutdown, err := Init(context.Background())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if shutdown == nil {
		t.Fatal("Init returned a nil shutdown")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
