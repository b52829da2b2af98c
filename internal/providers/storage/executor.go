// Package storage executes storage-read and storage-write calls against the
// host's namespaced key/value store. Namespaces partition extensions from
// each other; the gate has already checked the session's namespace scope by
// the time a call lands here.
package storage

import (
	"context"
	"sync"

	"github.com/GriffinCanCode/Warden/mediator/internal/providers"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// Executor is an in-memory namespaced KV store.
type Executor struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

// NewExecutor creates an empty store.
func NewExecutor() *Executor {
	return &Executor{data: make(map[string]map[string]string)}
}

// Capabilities implements providers.Executor.
func (e *Executor) Capabilities() []types.Capability {
	return []types.Capability{types.CapStorageRead, types.CapStorageWrite}
}

// Execute handles one read or write.
func (e *Executor) Execute(ctx context.Context, req types.CallRequest) (*providers.Outcome, error) {
	ns := stringParam(req.Params, "namespace")
	key := stringParam(req.Params, "key")
	if ns == "" || key == "" {
		return &providers.Outcome{
			Result: types.Fail(req.ID, "BAD_REQUEST", "namespace and key parameters required"),
		}, nil
	}

	switch req.Capability {
	case types.CapStorageRead:
		return e.read(req, ns, key), nil
	case types.CapStorageWrite:
		value, _ := req.Params["value"].(string)
		return e.write(req, ns, key, value), nil
	default:
		return &providers.Outcome{
			Result: types.Fail(req.ID, "BAD_REQUEST", "unsupported storage capability"),
		}, nil
	}
}

func (e *Executor) read(req types.CallRequest, ns, key string) *providers.Outcome {
	e.mu.RLock()
	value, ok := e.data[ns][key]
	e.mu.RUnlock()

	if !ok {
		return &providers.Outcome{
			Result: types.OK(req.ID, map[string]interface{}{"exists": false}),
		}
	}
	return &providers.Outcome{
		Result: types.OK(req.ID, map[string]interface{}{"exists": true, "value": value}),
		Bytes:  int64(len(value)),
	}
}

func (e *Executor) write(req types.CallRequest, ns, key, value string) *providers.Outcome {
	e.mu.Lock()
	if e.data[ns] == nil {
		e.data[ns] = make(map[string]string)
	}
	e.data[ns][key] = value
	e.mu.Unlock()

	return &providers.Outcome{
		Result: types.OK(req.ID, map[string]interface{}{"written": true}),
		Bytes:  int64(len(value)),
	}
}

// Seed pre-populates a namespace, for host bootstrapping and tests.
func (e *Executor) Seed(ns string, entries map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.data[ns] == nil {
		e.data[ns] = make(map[string]string)
	}
	for k, v := range entries {
		e.data[ns][k] = v
	}
}

func stringParam(params map[string]interface{}, key string) string {
	s, _ := params[key].(string)
	return s
}
