package honeypot

import (
	"context"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// Kind names one deception service.
type Kind string

const (
	KindNetwork     Kind = "network"
	KindFilesystem  Kind = "filesystem"
	KindCredentials Kind = "credentials"
	KindAPI         Kind = "api"
)

// Service is a stateful fake implementation of one host capability kind.
// Handle never returns an error: deception responses are not allowed to
// signal anything.
type Service interface {
	Kind() Kind
	Handle(ctx context.Context, req types.CallRequest) *types.CallResult
}

// ForensicEntry records one contained request for review.
type ForensicEntry struct {
	SessionID  string                 `json:"session_id"`
	Capability types.Capability       `json:"capability"`
	Params     map[string]interface{} `json:"params,omitempty"`
	Service    Kind                   `json:"service"`
	Timestamp  time.Time              `json:"timestamp"`
}

var credentialish = regexp.MustCompile(`(?i)(token|secret|passw|credential|api[_-]?key|auth)`)

// Registry dispatches contained sessions' calls to deception services.
type Registry struct {
	log      *logging.Logger
	services map[Kind]Service
	onFault  func()

	mu        sync.Mutex
	forensics map[string][]ForensicEntry
}

// NewRegistry creates a registry with the full default service set.
func NewRegistry(log *logging.Logger) *Registry {
	r := &Registry{
		log:       log,
		services:  make(map[Kind]Service),
		forensics: make(map[string][]ForensicEntry),
	}
	r.register(newNetworkService())
	r.register(newFilesystemService())
	r.register(newCredentialsService())
	r.register(newAPIService())
	return r
}

func (r *Registry) register(s Service) {
	r.services[s.Kind()] = s
}

// OnFault registers an observer for recovered service panics. Wiring-time
// only.
func (r *Registry) OnFault(fn func()) {
	r.onFault = fn
}

// Filesystem exposes the decoy filesystem for startup seeding.
func (r *Registry) Filesystem() *FilesystemService {
	return r.services[KindFilesystem].(*FilesystemService)
}

// Dispatch routes one approved call from a contained session to the
// matching service and records it for forensics. It never fails: a missing
// or panicking service degrades to an empty success.
func (r *Registry) Dispatch(ctx context.Context, sessionID string, req types.CallRequest) (result *types.CallResult) {
	kind := KindFor(req)

	r.mu.Lock()
	r.forensics[sessionID] = append(r.forensics[sessionID], ForensicEntry{
		SessionID:  sessionID,
		Capability: req.Capability,
		Params:     req.Params,
		Service:    kind,
		Timestamp:  time.Now(),
	})
	r.mu.Unlock()

	r.log.Info("honeypot request",
		zap.String("session_id", sessionID),
		zap.String("capability", req.Capability.String()),
		zap.String("service", string(kind)),
	)

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("honeypot service fault",
				zap.String("session_id", sessionID),
				zap.String("service", string(kind)),
				zap.Any("panic", rec),
			)
			if r.onFault != nil {
				r.onFault()
			}
			result = types.OK(req.ID, map[string]interface{}{})
		}
	}()

	svc, ok := r.services[kind]
	if !ok {
		return types.OK(req.ID, map[string]interface{}{})
	}
	return svc.Handle(ctx, req)
}

// Forensics returns the recorded requests for one contained session.
func (r *Registry) Forensics(sessionID string) []ForensicEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.forensics[sessionID]
	out := make([]ForensicEntry, len(entries))
	copy(out, entries)
	return out
}

// KindFor maps a capability call to its deception service. Storage calls
// touching credential-looking keys go to the credentials service; the
// fidelity of fake secrets matters most there.
func KindFor(req types.CallRequest) Kind {
	switch req.Capability {
	case types.CapNetworkFetch:
		return KindNetwork
	case types.CapStorageRead, types.CapStorageWrite:
		key, _ := req.Params["key"].(string)
		ns, _ := req.Params["namespace"].(string)
		if credentialish.MatchString(key) || credentialish.MatchString(ns) {
			return KindCredentials
		}
		return KindFilesystem
	default:
		return KindAPI
	}
}
