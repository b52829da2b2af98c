package isolation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/Warden/mediator/internal/gate"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/config"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Warden/mediator/internal/providers"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// Recorder receives threat events from resource accounting and detectors.
type Recorder interface {
	Record(sessionID string, kind types.EventKind, detail string)
}

// Operation names for the per-session allow-list. One low-level operation
// per capability keeps the mapping exhaustive and auditable.
var capabilityOps = map[types.Capability]string{
	types.CapNetworkFetch:   "net.connect",
	types.CapStorageRead:    "store.read",
	types.CapStorageWrite:   "store.write",
	types.CapDOMRead:        "dom.query",
	types.CapDOMEvaluate:    "js.eval",
	types.CapClipboardRead:  "clip.read",
	types.CapClipboardWrite: "clip.write",
	types.CapNotify:         "ui.notify",
}

// timeoutBurst is how many timeouts trigger one soft rate-limit breach.
// Repeated timeouts feed rate thresholds, not malicious-intent score.
const timeoutBurst = 5

// Core executes approved calls inside the confinement boundary. It is the
// only component that touches real host resources.
type Core struct {
	manager   *Manager
	recorder  Recorder
	cfg       config.IsolationConfig
	log       *logging.Logger
	detector  *detector
	executors map[types.Capability]providers.Executor
}

// NewCore creates the isolation core.
func NewCore(manager *Manager, recorder Recorder, cfg config.IsolationConfig, log *logging.Logger) *Core {
	return &Core{
		manager:   manager,
		recorder:  recorder,
		cfg:       cfg,
		log:       log,
		detector:  newDetector(),
		executors: make(map[types.Capability]providers.Executor),
	}
}

// RegisterExecutor wires a real capability implementation. Wiring-time only.
func (c *Core) RegisterExecutor(e providers.Executor) {
	for _, cap := range e.Capabilities() {
		c.executors[cap] = e
	}
}

// Manager exposes the session owner to the wiring layer.
func (c *Core) Manager() *Manager { return c.manager }

// Execute runs one approved call for a session. The approval's grant is the
// sole authority for the call; nothing ambient is consulted.
func (c *Core) Execute(ctx context.Context, sess *Session, approval *gate.Approval) (*types.CallResult, error) {
	req := approval.Request
	now := time.Now()

	c.manager.maybeExitRateLimit(sess, now)
	switch state := sess.State(); state {
	case types.StateTerminated:
		return nil, types.ErrSessionTerminated
	case types.StateHandshaking:
		return nil, fmt.Errorf("%w: session not active", types.ErrSessionTerminated)
	case types.StateRateLimited:
		return nil, types.ErrRateLimited
	}

	op, ok := capabilityOps[req.Capability]
	if !ok || approval.Grant.Capability != req.Capability {
		return nil, fmt.Errorf("%w: operation not allow-listed", types.ErrDenied)
	}

	if !sess.limiter.Allow() {
		c.manager.enterRateLimit(sess, now)
		c.recorder.Record(sess.ID, types.EventExcessiveNetwork,
			fmt.Sprintf("call rate exceeded %.0f/s", c.cfg.CallsPerSecond))
		return nil, types.ErrRateLimited
	}

	if f := c.detector.inspect(sess.ID, req); f != nil {
		c.recorder.Record(sess.ID, f.kind, f.detail)
		if f.fatal {
			// A process-scanning record terminates the session
			// synchronously through the scoring engine.
			if sess.State() == types.StateTerminated {
				return nil, types.ErrSessionTerminated
			}
			return nil, fmt.Errorf("%w: %s", types.ErrDenied, f.detail)
		}
	}

	executor, ok := c.executors[req.Capability]
	if !ok {
		return nil, fmt.Errorf("%w: no executor for %s", types.ErrResourceUnavailable, req.Capability)
	}

	sess.acct.recordCall()
	if held := sess.acct.adjustHandles(1); c.cfg.MaxOpenHandles > 0 && held > c.cfg.MaxOpenHandles {
		sess.acct.adjustHandles(-1)
		c.recorder.Record(sess.ID, types.EventExcessiveNetwork,
			fmt.Sprintf("open handle cap %d exceeded", c.cfg.MaxOpenHandles))
		return nil, fmt.Errorf("%w: open handle cap reached", types.ErrResourceUnavailable)
	}
	defer sess.acct.adjustHandles(-1)

	// Session context parents the call so termination cancels in-flight
	// work; the timeout bounds every privileged operation.
	callCtx, cancel := context.WithTimeout(sess.Context(), c.cfg.CallTimeout)
	defer cancel()

	outcome, err := executor.Execute(callCtx, req)
	if err != nil {
		return nil, c.accountFailure(sess, op, err)
	}

	if sess.acct.recordBytes(outcome.Bytes, c.cfg.MaxBytesPerSession) {
		c.recorder.Record(sess.ID, types.EventExcessiveNetwork,
			fmt.Sprintf("byte budget exceeded (%d bytes)", sess.Usage().Bytes))
	}

	return outcome.Result, nil
}

func (c *Core) accountFailure(sess *Session, op string, err error) error {
	if errors.Is(err, types.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		timeouts := sess.acct.recordTimeout()
		c.log.Warn("call timed out",
			zap.String("session_id", sess.ID),
			zap.String("op", op),
			zap.Uint64("timeouts", timeouts),
		)
		if timeouts%timeoutBurst == 0 {
			c.manager.enterRateLimit(sess, time.Now())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", types.ErrTimeout, op)
		}
		return err
	}
	if sess.Context().Err() != nil {
		return types.ErrSessionTerminated
	}
	return err
}

// ForgetSession clears per-session detector state after removal.
func (c *Core) ForgetSession(sessionID string) {
	c.detector.forget(sessionID)
}
