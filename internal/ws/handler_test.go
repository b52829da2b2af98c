package ws

import (
	"crypto/ecdh"
	"crypto/rand"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
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
	"github.com/GriffinCanCode/Warden/mediator/internal/manifest"
	"github.com/GriffinCanCode/Warden/mediator/internal/pipeline"
	"github.com/GriffinCanCode/Warden/mediator/internal/providers/storage"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
	"github.com/GriffinCanCode/Warden/mediator/internal/threat"
)

const testManifest = `
name: Test Extension
version: 1.0.0
extension_id: ext_under_test
permissions:
  - capability: storage-read
    namespace: app
`

// startGateway assembles a gateway around an httptest server and returns its
// websocket URL plus the pieces tests assert against.
func startGateway(t *testing.T) (string, *channel.HostIdentity, *isolation.Manager) {
	t.Helper()
	cfg := config.Default()
	log := logging.NewNop()

	identity, err := channel.NewHostIdentity()
	require.NoError(t, err)

	policy := &manifest.Policy{
		Extensions: map[string]manifest.PolicyEntry{
			"ext_under_test": {Approved: []manifest.Permission{
				{Capability: "storage-read", Namespace: "app"},
			}},
		},
		DefaultDeny: true,
	}

	manager := isolation.NewManager(cfg.Isolation, cfg.Channel.ReorderWindow, log)
	engine := threat.NewEngine(cfg.Threat, manager, log)
	g := gate.New(engine, log)

	store := storage.NewExecutor()
	store.Seed("app", map[string]string{"greeting": "hello"})
	core := isolation.NewCore(manager, engine, cfg.Isolation, log)
	core.RegisterExecutor(store)

	codec, err := channel.NewCodec(cfg.Channel.CompressThreshold)
	require.NoError(t, err)
	metrics := monitoring.NewWith(prometheus.NewRegistry())
	tracer := tracing.New("test", log.Logger)
	pipe := pipeline.New(codec, g, core, engine, honeypot.NewRegistry(log), metrics, tracer, log)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(identity, policy, manager, pipe, metrics, log)
	router.GET("/channel", handler.HandleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/channel", identity, manager
}

// extensionHandshake drives the client side of the handshake over conn.
func extensionHandshake(t *testing.T, conn *websocket.Conn, identity *channel.HostIdentity) (*channel.SessionKeys, string) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(Message{Type: "hello", ManifestYAML: testManifest}))

	var hostHello Message
	require.NoError(t, conn.ReadJSON(&hostHello))
	require.Equal(t, "host_hello", hostHello.Type)

	hello := &channel.HostHello{
		SessionID: hostHello.SessionID,
		HostKey:   hostHello.HostKey,
		Signature: hostHello.Signature,
	}
	require.NoError(t, channel.VerifyHello(identity.Public(), hello))

	extPriv, err := ecdh.X25519().GenerateKey(rand.Reader)
	require.NoError(t, err)
	keys, err := channel.CompleteAsExtension(extPriv, hello)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(Message{
		Type:         "client_key",
		ExtensionKey: extPriv.PublicKey().Bytes(),
	}))

	var ready Message
	require.NoError(t, conn.ReadJSON(&ready))
	require.Equal(t, "ready", ready.Type)

	return keys, hostHello.SessionID
}

func TestConnectionHandshakeAndCall(t *testing.T) {
	url, identity, manager := startGateway(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	keys, sessionID := extensionHandshake(t, conn, identity)

	sess, ok := manager.Get(sessionID)
	require.True(t, ok)
	assert.Equal(t, types.StateActive, sess.State())

	codec, err := channel.NewCodec(4096)
	require.NoError(t, err)
	payload, err := codec.Encode(map[string]interface{}{
		"id":         "call-1",
		"capability": "storage-read",
		"params":     map[string]interface{}{"namespace": "app", "key": "greeting"},
	})
	require.NoError(t, err)
	env, err := channel.Seal(keys, channel.ClientToHost, 1, payload)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(Message{
		Type:       "envelope",
		Seq:        env.Seq,
		Nonce:      env.Nonce,
		Ciphertext: env.Ciphertext,
		Sig:        env.Sig,
	}))

	var resp Message
	require.NoError(t, conn.ReadJSON(&resp))
	require.Equal(t, "envelope", resp.Type)

	plaintext, err := channel.Open(keys, channel.HostToClient, &channel.Envelope{
		Seq:        resp.Seq,
		Nonce:      resp.Nonce,
		Ciphertext: resp.Ciphertext,
		Sig:        resp.Sig,
	})
	require.NoError(t, err)

	var result types.CallResult
	require.NoError(t, codec.Decode(plaintext, &result))
	assert.True(t, result.Success)
	assert.Equal(t, "hello", result.Data["value"])
}

func TestConnectionRejectsUnknownExtension(t *testing.T) {
	url, _, _ := startGateway(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	unknown := strings.Replace(testManifest, "ext_under_test", "ext_stranger", 1)
	require.NoError(t, conn.WriteJSON(Message{Type: "hello", ManifestYAML: unknown}))

	var resp Message
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "error", resp.Type)
	assert.Equal(t, types.CodeHandshakeFailed, resp.Code)
}

func TestConnectionRejectsBadManifest(t *testing.T) {
	url, _, _ := startGateway(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Message{Type: "hello", ManifestYAML: "::::"}))

	var resp Message
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "error", resp.Type)
}

func TestDisconnectTerminatesSession(t *testing.T) {
	url, identity, manager := startGateway(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	_, sessionID := extensionHandshake(t, conn, identity)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		sess, ok := manager.Get(sessionID)
		return ok && sess.State() == types.StateTerminated
	}, 2*time.Second, 10*time.Millisecond)
}
