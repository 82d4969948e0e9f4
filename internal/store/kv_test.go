package store

import (
	"context"
	"errors"
	"testing"

	"github.com/ZanzyTHEbar/goalrunner"
)

func TestKeyValue_SetAndGet(t *testing.T) {
	kv := NewKeyValue()
	ctx := context.Background()

	value := map[string]any{"price": 42.5}
	if err := kv.Set(ctx, "btc", value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := kv.Get(ctx, "btc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.(map[string]any)["price"] != 42.5 {
		t.Errorf("unexpected value: %v", got)
	}
}

func TestKeyValue_MissingKey(t *testing.T) {
	kv := NewKeyValue()
	if _, err := kv.Get(context.Background(), "nope"); !goalrunner.IsCode(err, goalrunner.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestKeyValue_NilValueIsStored(t *testing.T) {
	kv := NewKeyValue()
	ctx := context.Background()
	_ = kv.Set(ctx, "empty", nil)

	got, err := kv.Get(ctx, "empty")
	if err != nil || got != nil {
		t.Errorf("expected stored nil, got %v, %v", got, err)
	}
}

func TestKeyValue_Clear(t *testing.T) {
	kv := NewKeyValue()
	ctx := context.Background()
	_ = kv.Set(ctx, "a", 1)
	_ = kv.Set(ctx, "b", 2)
	kv.Clear()
	if kv.Len() != 0 {
		t.Errorf("expected empty store, got %d keys", kv.Len())
	}
}

func TestKeyValue_CancelledContext(t *testing.T) {
	kv := NewKeyValue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := kv.Set(ctx, "a", 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Set: expected context.Canceled, got %v", err)
	}
	if _, err := kv.Get(ctx, "a"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get: expected context.Canceled, got %v", err)
	}
	if kv.Len() != 0 {
		t.Errorf("expected nothing stored, got %d keys", kv.Len())
	}
}
