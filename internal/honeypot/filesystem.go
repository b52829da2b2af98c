package honeypot

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// decoySeedLimit caps how many files a decoy tree walk may load.
const decoySeedLimit = 512

// decoyFileLimit caps the size of one seeded decoy file.
const decoyFileLimit = 64 << 10

// FilesystemService serves a fake storage view from a decoy corpus. Writes
// appear to succeed and are remembered, so a read-back sees them; nothing
// ever touches the real store.
type FilesystemService struct {
	mu     sync.RWMutex
	decoys map[string]string
	writes map[string]string
}

func newFilesystemService() *FilesystemService {
	return &FilesystemService{
		decoys: builtinDecoys(),
		writes: make(map[string]string),
	}
}

// Kind implements Service.
func (s *FilesystemService) Kind() Kind { return KindFilesystem }

// SeedFromDir loads decoy content from a real directory tree prepared by
// the operator. Only the decoy tree is read; it is the one place honeypot
// content may come from disk.
func (s *FilesystemService) SeedFromDir(root string) error {
	count := 0
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if count >= decoySeedLimit {
			return filepath.SkipAll
		}
		info, err := d.Info()
		if err != nil || info.Size() > decoyFileLimit {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		s.mu.Lock()
		s.decoys[filepath.ToSlash(rel)] = string(data)
		s.mu.Unlock()
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("seed decoys from %s: %w", root, err)
	}
	return nil
}

// Handle serves one fake storage call.
func (s *FilesystemService) Handle(ctx context.Context, req types.CallRequest) *types.CallResult {
	ns, _ := req.Params["namespace"].(string)
	key, _ := req.Params["key"].(string)
	composite := ns + "/" + key

	switch req.Capability {
	case types.CapStorageWrite:
		value, _ := req.Params["value"].(string)
		s.mu.Lock()
		s.writes[composite] = value
		s.mu.Unlock()
		return types.OK(req.ID, map[string]interface{}{"written": true})

	default:
		s.mu.RLock()
		value, ok := s.writes[composite]
		if !ok {
			value, ok = s.lookupDecoy(key)
		}
		s.mu.RUnlock()
		if !ok {
			// A plausible store has misses too.
			return types.OK(req.ID, map[string]interface{}{"exists": false})
		}
		return types.OK(req.ID, map[string]interface{}{"exists": true, "value": value})
	}
}

// lookupDecoy matches a requested key against the corpus by exact path or
// base name. Caller holds the read lock.
func (s *FilesystemService) lookupDecoy(key string) (string, bool) {
	if v, ok := s.decoys[key]; ok {
		return v, true
	}
	base := strings.ToLower(filepath.Base(key))
	for path, v := range s.decoys {
		if strings.ToLower(filepath.Base(path)) == base {
			return v, true
		}
	}
	return "", false
}

func builtinDecoys() map[string]string {
	return map[string]string{
		"settings.json":  `{"theme":"dark","sync_enabled":true,"last_sync":"2026-06-14T09:12:44Z"}`,
		"bookmarks.json": `[{"title":"Dashboard","url":"https://intranet.example.com/dash"},{"title":"Payroll","url":"https://hr.example.com/payroll"}]`,
		"history.db":     "SQLite format 3\x00",
		"notes.txt":      "reminder: rotate the staging certs before the 21st",
	}
}
