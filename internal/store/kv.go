package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/ZanzyTHEbar/goalrunner"
)

// KeyValue is a thread-safe in-memory key-value store. Values live for the
// lifetime of the process.
type KeyValue struct {
	mu    sync.RWMutex
	items map[string]any
}

// NewKeyValue creates an empty key-value store.
func NewKeyValue() *KeyValue {
	return &KeyValue{items: make(map[string]any)}
}

// Get returns the value stored at key. A missing key yields a NOT_FOUND error.
func (kv *KeyValue) Get(ctx context.Context, key string) (any, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}

	kv.mu.RLock()
	defer kv.mu.RUnlock()

	value, found := kv.items[key]
	if !found {
		return nil, goalrunner.NewNotFoundError(goalrunner.StageStore,
			fmt.Sprintf("key '%s' not found", key),
			errbuilder.NotFoundErr(errbuilder.GenericErr("key not found", nil)))
	}
	return value, nil
}

// Set stores value at key, replacing any previous value.
func (kv *KeyValue) Set(ctx context.Context, key string, value any) error {
	if err := contextErr(ctx); err != nil {
		return err
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.items[key] = value
	return nil
}

// Clear removes every stored value.
func (kv *KeyValue) Clear() {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.items = make(map[string]any)
}

// Len returns the number of stored keys.
func (kv *KeyValue) Len() int {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return len(kv.items)
}

// contextErr returns a coded error when ctx is already done.
func contextErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errbuilder.WrapIfContextDone(ctx, err)
	}
	return nil
}
