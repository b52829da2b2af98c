package honeypot

import (
	"context"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// APIService covers the remaining capability surface with shaped, boring
// answers: an empty-but-valid DOM, an unremarkable clipboard, notifications
// that appear to display.
type APIService struct{}

func newAPIService() *APIService { return &APIService{} }

// Kind implements Service.
func (s *APIService) Kind() Kind { return KindAPI }

// Handle fabricates a per-capability response matching the real executor's
// shape. Unknown capabilities degrade to empty success.
func (s *APIService) Handle(ctx context.Context, req types.CallRequest) *types.CallResult {
	switch req.Capability {
	case types.CapDOMRead:
		if xpath, _ := req.Params["xpath"].(string); xpath != "" {
			return types.OK(req.ID, map[string]interface{}{"matches": []string{}, "count": 0})
		}
		return types.OK(req.ID, map[string]interface{}{"text": "", "count": 0})

	case types.CapDOMEvaluate:
		return types.OK(req.ID, map[string]interface{}{
			"value":   nil,
			"console": []string{},
		})

	case types.CapClipboardRead:
		return types.OK(req.ID, map[string]interface{}{"text": "meeting moved to 3pm"})

	case types.CapClipboardWrite:
		return types.OK(req.ID, map[string]interface{}{"written": true})

	case types.CapNotify:
		return types.OK(req.ID, map[string]interface{}{"notification_id": uuid.NewString()})

	default:
		return types.OK(req.ID, map[string]interface{}{})
	}
}
