// Package ws carries the extension transport: one WebSocket connection per
// session, the handshake as the first exchange, envelopes after. A single
// read loop per connection preserves the channel's strict ordering without
// any extra synchronization.
package ws

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Warden/mediator/internal/channel"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Warden/mediator/internal/isolation"
	"github.com/GriffinCanCode/Warden/mediator/internal/manifest"
	"github.com/GriffinCanCode/Warden/mediator/internal/pipeline"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 << 10,
	WriteBufferSize: 32 << 10,
	CheckOrigin: func(r *http.Request) bool {
		// The gateway fronts a local browser process; remote origins
		// never reach it.
		return true
	},
}

// Message is the transport frame. Type selects which fields are set.
type Message struct {
	Type string `json:"type"`

	// hello
	ManifestYAML string `json:"manifest_yaml,omitempty"`

	// host_hello
	SessionID string `json:"session_id,omitempty"`
	HostKey   []byte `json:"host_key,omitempty"`
	Signature []byte `json:"signature,omitempty"`

	// client_key
	ExtensionKey []byte `json:"extension_key,omitempty"`

	// envelope (both directions)
	Seq        uint64 `json:"seq,omitempty"`
	Nonce      []byte `json:"nonce,omitempty"`
	Ciphertext []byte `json:"ciphertext,omitempty"`
	Sig        []byte `json:"sig,omitempty"`

	// error
	Code string `json:"code,omitempty"`
}

// Handler accepts extension connections.
type Handler struct {
	identity *channel.HostIdentity
	policy   *manifest.Policy
	manager  *isolation.Manager
	pipeline *pipeline.Pipeline
	metrics  *monitoring.Metrics
	log      *logging.Logger
}

// NewHandler creates the transport handler.
func NewHandler(
	identity *channel.HostIdentity,
	policy *manifest.Policy,
	manager *isolation.Manager,
	p *pipeline.Pipeline,
	metrics *monitoring.Metrics,
	log *logging.Logger,
) *Handler {
	return &Handler{
		identity: identity,
		policy:   policy,
		manager:  manager,
		pipeline: p,
		metrics:  metrics,
		log:      log,
	}
}

// HandleConnection upgrades and runs one extension connection to completion.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sess, ok := h.handshake(conn)
	if !ok {
		h.metrics.HandshakeTotal.WithLabelValues("failed").Inc()
		return
	}
	h.metrics.HandshakeTotal.WithLabelValues("ok").Inc()
	h.metrics.SessionsActive.Inc()
	defer h.metrics.SessionsActive.Dec()

	h.serve(c, conn, sess)

	// The session outlives the connection only as an audit record.
	h.manager.Terminate(sess.ID, "connection closed")
}

// handshake runs the authenticated key exchange as the connection's first
// two exchanges. Any failure aborts before the session reaches Active.
func (h *Handler) handshake(conn *websocket.Conn) (*isolation.Session, bool) {
	var hello Message
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != "hello" {
		h.abort(conn, types.CodeHandshakeFailed)
		return nil, false
	}

	m, err := manifest.Parse([]byte(hello.ManifestYAML))
	if err != nil {
		h.log.Warn("rejected manifest", zap.Error(err))
		h.abort(conn, types.CodeHandshakeFailed)
		return nil, false
	}

	approved, admitted := h.policy.ApprovedFor(m.ExtensionID)
	if !admitted {
		h.log.Warn("extension not admitted by policy", zap.String("extension_id", m.ExtensionID))
		h.abort(conn, types.CodeHandshakeFailed)
		return nil, false
	}
	grants := manifest.Effective(m, approved)

	sess := h.manager.Create(m.ExtensionID, grants)

	hs, hostHello, err := channel.NewHandshake(h.identity, sess.ID)
	if err != nil {
		h.failSession(conn, sess, err)
		return nil, false
	}
	if err := conn.WriteJSON(Message{
		Type:      "host_hello",
		SessionID: hostHello.SessionID,
		HostKey:   hostHello.HostKey,
		Signature: hostHello.Signature,
	}); err != nil {
		h.failSession(conn, sess, err)
		return nil, false
	}

	var clientKey Message
	if err := conn.ReadJSON(&clientKey); err != nil || clientKey.Type != "client_key" {
		h.failSession(conn, sess, types.ErrHandshakeFailed)
		return nil, false
	}

	keys, err := hs.Complete(clientKey.ExtensionKey)
	if err != nil {
		h.failSession(conn, sess, err)
		return nil, false
	}
	if err := h.manager.Activate(sess.ID, keys); err != nil {
		h.failSession(conn, sess, err)
		return nil, false
	}

	if err := conn.WriteJSON(Message{Type: "ready", SessionID: sess.ID}); err != nil {
		return nil, false
	}
	return sess, true
}

// serve is the envelope loop. Dropped messages (replays, malformed frames)
// get no reply at all.
func (h *Handler) serve(c *gin.Context, conn *websocket.Conn, sess *isolation.Session) {
	reqCtx := c.Request.Context()
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type != "envelope" {
			continue
		}

		env := &channel.Envelope{
			Seq:        msg.Seq,
			Nonce:      msg.Nonce,
			Ciphertext: msg.Ciphertext,
			Sig:        msg.Sig,
		}

		resp, err := h.pipeline.HandleEnvelope(reqCtx, sess, env)
		if err != nil {
			if errors.Is(err, types.ErrSessionTerminated) {
				return
			}
			continue
		}

		if err := conn.WriteJSON(Message{
			Type:       "envelope",
			Seq:        resp.Seq,
			Nonce:      resp.Nonce,
			Ciphertext: resp.Ciphertext,
			Sig:        resp.Sig,
		}); err != nil {
			return
		}
	}
}

func (h *Handler) abort(conn *websocket.Conn, code string) {
	_ = conn.WriteJSON(Message{Type: "error", Code: code})
}

func (h *Handler) failSession(conn *websocket.Conn, sess *isolation.Session, err error) {
	h.log.Warn("handshake failed",
		zap.String("session_id", sess.ID),
		zap.Error(err),
	)
	h.manager.Terminate(sess.ID, "handshake failed")
	h.abort(conn, types.CodeHandshakeFailed)
}
