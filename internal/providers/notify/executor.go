// Package notify executes notification-display calls. Notifications queue
// in a bounded in-memory buffer the host UI drains; the gateway does not
// render anything itself.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/Warden/mediator/internal/providers"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

const queueLimit = 100

// Notification is one queued display request.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	QueuedAt  time.Time `json:"queued_at"`
	SessionID string    `json:"session_id,omitempty"`
}

// Executor queues notifications for the host UI.
type Executor struct {
	mu    sync.Mutex
	queue []Notification
}

// NewExecutor creates an empty queue.
func NewExecutor() *Executor {
	return &Executor{}
}

// Capabilities implements providers.Executor.
func (e *Executor) Capabilities() []types.Capability {
	return []types.Capability{types.CapNotify}
}

// Execute queues one notification.
func (e *Executor) Execute(ctx context.Context, req types.CallRequest) (*providers.Outcome, error) {
	title, _ := req.Params["title"].(string)
	if title == "" {
		return &providers.Outcome{
			Result: types.Fail(req.ID, "BAD_REQUEST", "title parameter required"),
		}, nil
	}
	body, _ := req.Params["body"].(string)

	n := Notification{
		ID:       uuid.NewString(),
		Title:    title,
		Body:     body,
		QueuedAt: time.Now(),
	}

	e.mu.Lock()
	e.queue = append(e.queue, n)
	if len(e.queue) > queueLimit {
		e.queue = e.queue[len(e.queue)-queueLimit:]
	}
	e.mu.Unlock()

	return &providers.Outcome{
		Result: types.OK(req.ID, map[string]interface{}{"notification_id": n.ID}),
		Bytes:  int64(len(title) + len(body)),
	}, nil
}

// Drain returns and clears the queue, for the host UI.
func (e *Executor) Drain() []Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.queue
	e.queue = nil
	return out
}
