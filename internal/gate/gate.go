package gate

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// Recorder receives threat events for policy violations. Implemented by the
// threat scoring engine.
type Recorder interface {
	Record(sessionID string, kind types.EventKind, detail string)
}

// Approval is a successful gate decision: the request, unchanged, with the
// approving grant attached for audit.
type Approval struct {
	Request types.CallRequest
	Grant   types.PermissionGrant
}

// Gate validates calls against per-session grant sets.
type Gate struct {
	recorder Recorder
	log      *logging.Logger
}

// New creates a capability gate.
func New(recorder Recorder, log *logging.Logger) *Gate {
	return &Gate{recorder: recorder, log: log}
}

// Check admits or denies one call. On denial it records a blocked-call
// threat event and returns ErrPermissionDenied; approval attaches the grant
// that matched.
func (g *Gate) Check(sessionID string, req types.CallRequest, grants types.GrantSet) (*Approval, error) {
	candidates := grants.For(req.Capability)
	if len(candidates) == 0 {
		return nil, g.deny(sessionID, req, "capability not granted")
	}

	for _, grant := range candidates {
		ok, err := g.matches(grant, req)
		if err != nil {
			return nil, g.deny(sessionID, req, err.Error())
		}
		if ok {
			return &Approval{Request: req, Grant: grant}, nil
		}
	}
	return nil, g.deny(sessionID, req, "no grant covers the requested scope")
}

// matches evaluates one grant against the request's scoping parameters. A
// scoped grant with an unscopable request is an error, not a pass.
func (g *Gate) matches(grant types.PermissionGrant, req types.CallRequest) (bool, error) {
	switch req.Capability {
	case types.CapNetworkFetch:
		if len(grant.Domains) == 0 {
			return true, nil
		}
		rawURL, _ := req.Params["url"].(string)
		if rawURL == "" {
			return false, fmt.Errorf("scoped network grant requires a url parameter")
		}
		return matchDomains(grant.Domains, rawURL)

	case types.CapStorageRead, types.CapStorageWrite:
		if !grant.Scoped() {
			return true, nil
		}
		ns, _ := req.Params["namespace"].(string)
		key, _ := req.Params["key"].(string)
		if grant.Namespace != "" {
			if ns == "" {
				return false, fmt.Errorf("scoped storage grant requires a namespace parameter")
			}
			if ns != grant.Namespace {
				return false, nil
			}
		}
		if len(grant.KeyPatterns) > 0 {
			if key == "" {
				return false, fmt.Errorf("key-scoped storage grant requires a key parameter")
			}
			return matchKeyPatterns(grant.KeyPatterns, key)
		}
		return true, nil

	default:
		// DOM, clipboard and notification grants carry no scope.
		return true, nil
	}
}

func (g *Gate) deny(sessionID string, req types.CallRequest, reason string) error {
	detail := fmt.Sprintf("%s: %s", req.Capability, reason)
	g.recorder.Record(sessionID, types.EventBlockedCall, detail)
	g.log.Warn("call denied",
		zap.String("session_id", sessionID),
		zap.String("capability", req.Capability.String()),
		zap.String("reason", reason),
	)
	return fmt.Errorf("%w: %s", types.ErrPermissionDenied, detail)
}
