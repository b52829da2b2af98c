package pipeline

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/Warden/mediator/internal/channel"
	"github.com/GriffinCanCode/Warden/mediator/internal/gate"
	"github.com/GriffinCanCode/Warden/mediator/internal/honeypot"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/config"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/Warden/mediator/internal/isolation"
	"github.com/GriffinCanCode/Warden/mediator/internal/providers/storage"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
	"github.com/GriffinCanCode/Warden/mediator/internal/threat"
)

// harness is a fully wired pipeline with an extension-side view of the
// channel for sealing requests and opening responses.
type harness struct {
	pipe    *Pipeline
	manager *isolation.Manager
	engine  *threat.Engine
	reg     *honeypot.Registry
	codec   *channel.Codec
	sess    *isolation.Session
	sendSeq uint64
}

func newHarness(t *testing.T, grants []types.PermissionGrant) *harness {
	t.Helper()
	cfg := config.Default()
	log := logging.NewNop()

	manager := isolation.NewManager(cfg.Isolation, cfg.Channel.ReorderWindow, log)
	engine := threat.NewEngine(cfg.Threat, manager, log)
	g := gate.New(engine, log)

	store := storage.NewExecutor()
	store.Seed("app", map[string]string{"greeting": "hello"})
	core := isolation.NewCore(manager, engine, cfg.Isolation, log)
	core.RegisterExecutor(store)

	reg := honeypot.NewRegistry(log)
	codec, err := channel.NewCodec(cfg.Channel.CompressThreshold)
	require.NoError(t, err)

	metrics := monitoring.NewWith(prometheus.NewRegistry())
	tracer := tracing.New("test", log.Logger)
	pipe := New(codec, g, core, engine, reg, metrics, tracer, log)

	sess := manager.Create("ext_test", types.NewGrantSet(grants))
	require.NoError(t, manager.Activate(sess.ID, testKeys(t, sess.ID)))

	return &harness{pipe: pipe, manager: manager, engine: engine, reg: reg, codec: codec, sess: sess}
}

// testKeys derives real session keys so sealing and opening go through the
// production key schedule.
func testKeys(t *testing.T, sessionID string) *channel.SessionKeys {
	t.Helper()
	identity, err := channel.NewHostIdentity()
	require.NoError(t, err)
	hs, _, err := channel.NewHandshake(identity, sessionID)
	require.NoError(t, err)

	ext, err := ecdh.X25519().GenerateKey(rand.Reader)
	require.NoError(t, err)
	keys, err := hs.Complete(ext.PublicKey().Bytes())
	require.NoError(t, err)
	return keys
}

// send seals one call as the extension and runs it through the pipeline.
func (h *harness) send(t *testing.T, call map[string]interface{}) (*channel.Envelope, error) {
	t.Helper()
	payload, err := h.codec.Encode(call)
	require.NoError(t, err)
	h.sendSeq++
	env, err := channel.Seal(h.sess.Keys, channel.ClientToHost, h.sendSeq, payload)
	require.NoError(t, err)
	return h.pipe.HandleEnvelope(context.Background(), h.sess, env)
}

// openResult decrypts and decodes a pipeline response.
func (h *harness) openResult(t *testing.T, env *channel.Envelope) *types.CallResult {
	t.Helper()
	plaintext, err := channel.Open(h.sess.Keys, channel.HostToClient, env)
	require.NoError(t, err)
	var result types.CallResult
	require.NoError(t, h.codec.Decode(plaintext, &result))
	return &result
}

func storageReadCall(id, key string) map[string]interface{} {
	return map[string]interface{}{
		"id":         id,
		"capability": "storage-read",
		"params":     map[string]interface{}{"namespace": "app", "key": key},
	}
}

func TestPipelineRoundTrip(t *testing.T) {
	h := newHarness(t, []types.PermissionGrant{{Capability: types.CapStorageRead}})

	env, err := h.send(t, storageReadCall("call-1", "greeting"))
	require.NoError(t, err)

	result := h.openResult(t, env)
	assert.Equal(t, "call-1", result.ID)
	assert.True(t, result.Success)
	assert.Equal(t, "hello", result.Data["value"])
	assert.Empty(t, h.engine.Events(h.sess.ID))
}

func TestPipelineDropsReplayedEnvelope(t *testing.T) {
	h := newHarness(t, []types.PermissionGrant{{Capability: types.CapStorageRead}})

	payload, err := h.codec.Encode(storageReadCall("call-1", "greeting"))
	require.NoError(t, err)
	env, err := channel.Seal(h.sess.Keys, channel.ClientToHost, 1, payload)
	require.NoError(t, err)

	_, err = h.pipe.HandleEnvelope(context.Background(), h.sess, env)
	require.NoError(t, err)

	resp, err := h.pipe.HandleEnvelope(context.Background(), h.sess, env)
	assert.ErrorIs(t, err, types.ErrReplayDetected)
	assert.Nil(t, resp)

	events := h.engine.Events(h.sess.ID)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventBlockedCall, events[0].Kind)

	// The session survives and later sequences still work.
	h.sendSeq = 1
	env2, err := h.send(t, storageReadCall("call-2", "greeting"))
	require.NoError(t, err)
	assert.True(t, h.openResult(t, env2).Success)
}

func TestPipelineDropsTamperedEnvelope(t *testing.T) {
	h := newHarness(t, []types.PermissionGrant{{Capability: types.CapStorageRead}})

	payload, err := h.codec.Encode(storageReadCall("call-1", "greeting"))
	require.NoError(t, err)
	env, err := channel.Seal(h.sess.Keys, channel.ClientToHost, 1, payload)
	require.NoError(t, err)
	env.Ciphertext[0] ^= 0x01

	resp, err := h.pipe.HandleEnvelope(context.Background(), h.sess, env)
	assert.ErrorIs(t, err, types.ErrMalformedEnvelope)
	assert.Nil(t, resp)

	events := h.engine.Events(h.sess.ID)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventBlockedCall, events[0].Kind)
}

func TestPipelineForgedEnvelopeDoesNotConsumeSequence(t *testing.T) {
	h := newHarness(t, []types.PermissionGrant{{Capability: types.CapStorageRead}})

	payload, err := h.codec.Encode(storageReadCall("call-1", "greeting"))
	require.NoError(t, err)
	forged, err := channel.Seal(h.sess.Keys, channel.ClientToHost, 1, payload)
	require.NoError(t, err)
	forged.Ciphertext[0] ^= 0x01

	_, err = h.pipe.HandleEnvelope(context.Background(), h.sess, forged)
	require.ErrorIs(t, err, types.ErrMalformedEnvelope)
	assert.Zero(t, h.sess.LastAccepted())

	// The extension's genuine envelope at the same sequence still goes
	// through: only authenticated envelopes advance the replay mark.
	env, err := h.send(t, storageReadCall("call-1", "greeting"))
	require.NoError(t, err)
	assert.True(t, h.openResult(t, env).Success)
	assert.Equal(t, uint64(1), h.sess.LastAccepted())
}

func TestPipelineForgedWindowEdgeDoesNotWedgeWindow(t *testing.T) {
	h := newHarness(t, []types.PermissionGrant{{Capability: types.CapStorageRead}})
	window := config.Default().Channel.ReorderWindow

	payload, err := h.codec.Encode(storageReadCall("call-x", "greeting"))
	require.NoError(t, err)
	forged, err := channel.Seal(h.sess.Keys, channel.ClientToHost, window, payload)
	require.NoError(t, err)
	forged.Sig[0] ^= 0x01

	_, err = h.pipe.HandleEnvelope(context.Background(), h.sess, forged)
	require.ErrorIs(t, err, types.ErrMalformedEnvelope)

	// Sequences 1..window all remain usable.
	env, err := h.send(t, storageReadCall("call-1", "greeting"))
	require.NoError(t, err)
	assert.True(t, h.openResult(t, env).Success)
	assert.Equal(t, uint64(1), h.sess.LastAccepted())
}

func TestPipelineDeniesUngrantedCall(t *testing.T) {
	h := newHarness(t, nil)

	env, err := h.send(t, storageReadCall("call-1", "greeting"))
	require.NoError(t, err)

	result := h.openResult(t, env)
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, types.CodePermissionDenied, result.Error.Code)

	events := h.engine.Events(h.sess.ID)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventBlockedCall, events[0].Kind)
}

func TestPipelineRejectsUnknownCapability(t *testing.T) {
	h := newHarness(t, nil)

	env, err := h.send(t, map[string]interface{}{
		"id":         "call-1",
		"capability": "launch-missiles",
	})
	require.NoError(t, err)

	result := h.openResult(t, env)
	assert.False(t, result.Success)
	assert.Equal(t, types.CodePermissionDenied, result.Error.Code)
}

func TestPipelineEscalatesToContainmentThenDeceives(t *testing.T) {
	h := newHarness(t, []types.PermissionGrant{{Capability: types.CapStorageRead}})

	// Five denials at 10 points each reach the containment threshold.
	for i := 0; i < 5; i++ {
		env, err := h.send(t, map[string]interface{}{
			"id":         "probe",
			"capability": "dom-evaluate",
		})
		require.NoError(t, err)
		assert.False(t, h.openResult(t, env).Success)
	}
	require.Equal(t, types.StateContained, h.sess.State())

	// An approved call from the contained session gets a fabricated answer,
	// not the real store, and lands in forensics.
	env, err := h.send(t, storageReadCall("call-x", "greeting"))
	require.NoError(t, err)
	result := h.openResult(t, env)
	assert.True(t, result.Success)
	assert.NotEqual(t, "hello", result.Data["value"])

	entries := h.reg.Forensics(h.sess.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, types.CapStorageRead, entries[0].Capability)
}

func TestPipelineTerminatedSessionRefusesEnvelopes(t *testing.T) {
	h := newHarness(t, []types.PermissionGrant{{Capability: types.CapStorageRead}})

	h.manager.Terminate(h.sess.ID, "test")

	payload, err := h.codec.Encode(storageReadCall("call-1", "greeting"))
	require.NoError(t, err)
	env, err := channel.Seal(h.sess.Keys, channel.ClientToHost, 1, payload)
	require.NoError(t, err)

	_, err = h.pipe.HandleEnvelope(context.Background(), h.sess, env)
	assert.ErrorIs(t, err, types.ErrSessionTerminated)
}

func TestPipelineResponsesUseOutboundSequence(t *testing.T) {
	h := newHarness(t, []types.PermissionGrant{{Capability: types.CapStorageRead}})

	first, err := h.send(t, storageReadCall("call-1", "greeting"))
	require.NoError(t, err)
	second, err := h.send(t, storageReadCall("call-2", "greeting"))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
}
