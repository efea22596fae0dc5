package handoff

import (
	"context"
	"testing"
)

func TestInMemory_TakeConsumes(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if _, ok, _ := s.Take(ctx); ok {
		t.Fatal("empty store must report nothing staged")
	}

	if err := s.Put(ctx, Prefill{"cedula": "0000"}); err != nil {
		t.Fatal(err)
	}
	p, ok, err := s.Take(ctx)
	if err != nil || !ok {
		t.Fatalf("take: ok=%v err=%v", ok, err)
	}
	if p["cedula"] != "0000" {
		t.Errorf("prefill = %v", p)
	}

	// Deleted on consumption: a second take finds nothing.
	if _, ok, _ := s.Take(ctx); ok {
		t.Fatal("prefill must be deleted once consumed")
	}
}

func TestInMemory_PutReplaces(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	_ = s.Put(ctx, Prefill{"cedula": "111"})
	_ = s.Put(ctx, Prefill{"nombre": "Jane Doe"})

	p, ok, _ := s.Take(ctx)
	if !ok || p["nombre"] != "Jane Doe" || p["cedula"] != "" {
		t.Errorf("prefill = %v", p)
	}
}
