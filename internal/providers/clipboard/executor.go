// Package clipboard executes clipboard-read and clipboard-write calls
// against the host clipboard. The store keeps a bounded history so the
// management UI can show what extensions have touched.
package clipboard

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/Warden/mediator/internal/providers"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

const historyLimit = 50

// Entry is one clipboard write.
type Entry struct {
	Text      string    `json:"text"`
	SessionID string    `json:"session_id,omitempty"`
	WrittenAt time.Time `json:"written_at"`
}

// Executor is the host clipboard.
type Executor struct {
	mu      sync.RWMutex
	current string
	history []Entry
}

// NewExecutor creates an empty clipboard.
func NewExecutor() *Executor {
	return &Executor{}
}

// Capabilities implements providers.Executor.
func (e *Executor) Capabilities() []types.Capability {
	return []types.Capability{types.CapClipboardRead, types.CapClipboardWrite}
}

// Execute handles one clipboard call.
func (e *Executor) Execute(ctx context.Context, req types.CallRequest) (*providers.Outcome, error) {
	switch req.Capability {
	case types.CapClipboardRead:
		e.mu.RLock()
		text := e.current
		e.mu.RUnlock()
		return &providers.Outcome{
			Result: types.OK(req.ID, map[string]interface{}{"text": text}),
			Bytes:  int64(len(text)),
		}, nil

	case types.CapClipboardWrite:
		text, _ := req.Params["text"].(string)
		e.mu.Lock()
		e.current = text
		e.history = append(e.history, Entry{Text: text, WrittenAt: time.Now()})
		if len(e.history) > historyLimit {
			e.history = e.history[len(e.history)-historyLimit:]
		}
		e.mu.Unlock()
		return &providers.Outcome{
			Result: types.OK(req.ID, map[string]interface{}{"written": true}),
			Bytes:  int64(len(text)),
		}, nil

	default:
		return &providers.Outcome{
			Result: types.Fail(req.ID, "BAD_REQUEST", "unsupported clipboard capability"),
		}, nil
	}
}

// History returns a copy of recent writes, newest last.
func (e *Executor) History() []Entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Entry, len(e.history))
	copy(out, e.history)
	return out
}
