// Package providers defines the executor contract for real capability
// implementations. The isolation core is the only caller: it hands an
// executor one approved call at a time and accounts the reported usage.
package providers

import (
	"context"

	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// Outcome is one executed call's result plus the usage the isolation core
// needs for resource accounting.
type Outcome struct {
	Result *types.CallResult
	// Bytes is the payload volume moved by this call, both directions.
	Bytes int64
	// Handles is the net change in open resource handles (+1 opened,
	// -1 released, 0 for point operations).
	Handles int
}

// Executor executes approved capability calls against real host resources.
// Implementations must honor ctx cancellation and deadlines; blocking work
// past the deadline is a Timeout failure, never a hang.
type Executor interface {
	Capabilities() []types.Capability
	Execute(ctx context.Context, req types.CallRequest) (*Outcome, error)
}
