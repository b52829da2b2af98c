package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

type recordedEvent struct {
	sessionID string
	kind      types.EventKind
	detail    string
}

type fakeRecorder struct {
	events []recordedEvent
}

func (r *fakeRecorder) Record(sessionID string, kind types.EventKind, detail string) {
	r.events = append(r.events, recordedEvent{sessionID, kind, detail})
}

func newGate() (*Gate, *fakeRecorder) {
	rec := &fakeRecorder{}
	return New(rec, logging.NewNop()), rec
}

func fetchReq(url string) types.CallRequest {
	return types.CallRequest{
		ID:         "call-1",
		Capability: types.CapNetworkFetch,
		Params:     map[string]interface{}{"url": url},
	}
}

func TestCheckDeniesUngrantedCapability(t *testing.T) {
	g, rec := newGate()
	grants := types.NewGrantSet(nil)

	_, err := g.Check("sess_1", fetchReq("https://example.com/"), grants)

	require.ErrorIs(t, err, types.ErrPermissionDenied)
	require.Len(t, rec.events, 1)
	assert.Equal(t, "sess_1", rec.events[0].sessionID)
	assert.Equal(t, types.EventBlockedCall, rec.events[0].kind)
}

func TestCheckUnscopedGrantAllows(t *testing.T) {
	g, rec := newGate()
	grants := types.NewGrantSet([]types.PermissionGrant{
		{Capability: types.CapNetworkFetch},
	})

	approval, err := g.Check("sess_1", fetchReq("https://anywhere.example/"), grants)

	require.NoError(t, err)
	assert.Equal(t, types.CapNetworkFetch, approval.Grant.Capability)
	assert.Empty(t, rec.events)
}

func TestCheckDomainScope(t *testing.T) {
	g, _ := newGate()
	grants := types.NewGrantSet([]types.PermissionGrant{
		{Capability: types.CapNetworkFetch, Domains: []string{"example.com"}},
	})

	tests := []struct {
		url     string
		allowed bool
	}{
		{"https://example.com/path", true},
		{"https://api.example.com/v1", true},
		{"https://EXAMPLE.com/", true},
		{"https://example.org/", false},
		{"https://notexample.com/", false},
		{"https://example.com.evil.net/", false},
	}
	for _, tt := range tests {
		_, err := g.Check("sess_1", fetchReq(tt.url), grants)
		if tt.allowed {
			assert.NoError(t, err, tt.url)
		} else {
			assert.ErrorIs(t, err, types.ErrPermissionDenied, tt.url)
		}
	}
}

func TestCheckPublicSuffixGrantNeverMatches(t *testing.T) {
	g, _ := newGate()
	grants := types.NewGrantSet([]types.PermissionGrant{
		{Capability: types.CapNetworkFetch, Domains: []string{"com"}},
	})

	_, err := g.Check("sess_1", fetchReq("https://example.com/"), grants)
	assert.ErrorIs(t, err, types.ErrPermissionDenied)
}

func TestCheckScopedNetworkGrantRequiresURL(t *testing.T) {
	g, rec := newGate()
	grants := types.NewGrantSet([]types.PermissionGrant{
		{Capability: types.CapNetworkFetch, Domains: []string{"example.com"}},
	})

	req := types.CallRequest{ID: "call-1", Capability: types.CapNetworkFetch}
	_, err := g.Check("sess_1", req, grants)

	assert.ErrorIs(t, err, types.ErrPermissionDenied)
	assert.Len(t, rec.events, 1)
}

func TestCheckStorageScopes(t *testing.T) {
	g, _ := newGate()
	grants := types.NewGrantSet([]types.PermissionGrant{
		{
			Capability:  types.CapStorageRead,
			Namespace:   "settings",
			KeyPatterns: []string{"ui/**", "theme"},
		},
	})

	read := func(ns, key string) types.CallRequest {
		return types.CallRequest{
			ID:         "call-1",
			Capability: types.CapStorageRead,
			Params:     map[string]interface{}{"namespace": ns, "key": key},
		}
	}

	_, err := g.Check("sess_1", read("settings", "ui/layout/panels"), grants)
	assert.NoError(t, err)
	_, err = g.Check("sess_1", read("settings", "theme"), grants)
	assert.NoError(t, err)
	_, err = g.Check("sess_1", read("settings", "history/entry"), grants)
	assert.ErrorIs(t, err, types.ErrPermissionDenied)
	_, err = g.Check("sess_1", read("other", "ui/layout"), grants)
	assert.ErrorIs(t, err, types.ErrPermissionDenied)
}

func TestCheckFirstMatchingGrantWins(t *testing.T) {
	g, _ := newGate()
	grants := types.NewGrantSet([]types.PermissionGrant{
		{Capability: types.CapNetworkFetch, Domains: []string{"one.example"}},
		{Capability: types.CapNetworkFetch, Domains: []string{"two.example"}},
	})

	approval, err := g.Check("sess_1", fetchReq("https://two.example/"), grants)
	require.NoError(t, err)
	assert.Equal(t, []string{"two.example"}, approval.Grant.Domains)
}

func TestCheckUnscopedCapabilities(t *testing.T) {
	g, _ := newGate()
	grants := types.NewGrantSet([]types.PermissionGrant{
		{Capability: types.CapDOMRead},
		{Capability: types.CapClipboardWrite},
		{Capability: types.CapNotify},
	})

	for _, c := range []types.Capability{types.CapDOMRead, types.CapClipboardWrite, types.CapNotify} {
		_, err := g.Check("sess_1", types.CallRequest{ID: "x", Capability: c}, grants)
		assert.NoError(t, err, c)
	}
}
