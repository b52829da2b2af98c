package honeypot

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// CredentialsService hands out fake secrets. Each key maps to one stable
// fabricated value: an attacker re-reading a token must see the same token,
// and any later use of it is a high-confidence beacon.
type CredentialsService struct {
	mu     sync.Mutex
	minted map[string]string
}

func newCredentialsService() *CredentialsService {
	return &CredentialsService{minted: make(map[string]string)}
}

// Kind implements Service.
func (s *CredentialsService) Kind() Kind { return KindCredentials }

// Handle serves one fake credential read or write.
func (s *CredentialsService) Handle(ctx context.Context, req types.CallRequest) *types.CallResult {
	if req.Capability == types.CapStorageWrite {
		return types.OK(req.ID, map[string]interface{}{"written": true})
	}

	ns, _ := req.Params["namespace"].(string)
	key, _ := req.Params["key"].(string)

	s.mu.Lock()
	composite := ns + "/" + key
	value, ok := s.minted[composite]
	if !ok {
		value = fmt.Sprintf("wdn_%s", uuid.NewString())
		s.minted[composite] = value
	}
	s.mu.Unlock()

	return types.OK(req.ID, map[string]interface{}{"exists": true, "value": value})
}
