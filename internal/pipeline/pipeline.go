// Package pipeline wires the mediation stages together: decrypt and verify,
// gate, execute (real or deceptive), score, encrypt and sign. Each stage
// consumes a typed request and produces a typed outcome; the only shared
// state is the session looked up through the isolation manager.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/Warden/mediator/internal/channel"
	"github.com/GriffinCanCode/Warden/mediator/internal/gate"
	"github.com/GriffinCanCode/Warden/mediator/internal/honeypot"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/Warden/mediator/internal/isolation"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
	"github.com/GriffinCanCode/Warden/mediator/internal/threat"
)

// wireCall is the decoded plaintext of an inbound envelope, before the
// capability string has been validated against the closed set.
type wireCall struct {
	ID         string                 `json:"id"`
	Capability string                 `json:"capability"`
	Params     map[string]interface{} `json:"params,omitempty"`
}

// Pipeline processes envelopes for active and contained sessions.
type Pipeline struct {
	codec    *channel.Codec
	gate     *gate.Gate
	core     *isolation.Core
	engine   *threat.Engine
	honeypot *honeypot.Registry
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	log      *logging.Logger
}

// New assembles the pipeline.
func New(
	codec *channel.Codec,
	g *gate.Gate,
	core *isolation.Core,
	engine *threat.Engine,
	registry *honeypot.Registry,
	metrics *monitoring.Metrics,
	tracer *tracing.Tracer,
	log *logging.Logger,
) *Pipeline {
	return &Pipeline{
		codec:    codec,
		gate:     g,
		core:     core,
		engine:   engine,
		honeypot: registry,
		metrics:  metrics,
		tracer:   tracer,
		log:      log,
	}
}

// HandleEnvelope processes one inbound envelope and returns the sealed
// response. A nil envelope with an error means the message was dropped
// (replay, reorder, malformed): protocol violations get no reply, only a
// threat event.
func (p *Pipeline) HandleEnvelope(ctx context.Context, sess *isolation.Session, env *channel.Envelope) (*channel.Envelope, error) {
	if sess.State().Terminal() {
		return nil, types.ErrSessionTerminated
	}

	// The replay mark advances only after the envelope authenticates; a
	// forged frame at a valid-looking sequence must not consume it.
	if err := sess.CheckSeq(env.Seq); err != nil {
		outcome := "replay"
		if errors.Is(err, types.ErrReorder) {
			outcome = "reorder"
		}
		p.metrics.EnvelopesIn.WithLabelValues(outcome).Inc()
		p.engine.Record(sess.ID, types.EventBlockedCall,
			fmt.Sprintf("envelope %s: seq %d", outcome, env.Seq))
		return nil, err
	}

	plaintext, err := channel.Open(sess.Keys, channel.ClientToHost, env)
	if err != nil {
		p.metrics.EnvelopesIn.WithLabelValues("malformed").Inc()
		p.engine.Record(sess.ID, types.EventBlockedCall,
			fmt.Sprintf("malformed envelope at seq %d", env.Seq))
		return nil, err
	}
	sess.CommitSeq(env.Seq)
	p.metrics.EnvelopesIn.WithLabelValues("ok").Inc()

	var call wireCall
	if err := p.codec.Decode(plaintext, &call); err != nil {
		p.engine.Record(sess.ID, types.EventBlockedCall, "undecodable payload")
		return nil, err
	}

	result := p.process(ctx, sess, call)
	return p.seal(sess, result)
}

// process runs the decoded call through gate and execution.
func (p *Pipeline) process(ctx context.Context, sess *isolation.Session, call wireCall) *types.CallResult {
	span, ctx := p.tracer.StartSpan(ctx, "mediate.call")
	span.SetTag("session_id", sess.ID)
	span.SetTag("capability", call.Capability)
	defer p.tracer.Finish(span)

	capability, err := types.ParseCapability(call.Capability)
	if err != nil {
		p.engine.Record(sess.ID, types.EventBlockedCall, err.Error())
		p.metrics.GateDecisions.WithLabelValues(call.Capability, "deny").Inc()
		return types.Fail(call.ID, types.CodePermissionDenied, err.Error())
	}

	req := types.CallRequest{ID: call.ID, Capability: capability, Params: call.Params}

	// The gate's verdict is identical for contained sessions: containment
	// changes where an approved call executes, not whether it is approved.
	approval, err := p.gate.Check(sess.ID, req, sess.Grants)
	if err != nil {
		p.metrics.GateDecisions.WithLabelValues(capability.String(), "deny").Inc()
		return types.Fail(req.ID, types.CodePermissionDenied, err.Error())
	}
	p.metrics.GateDecisions.WithLabelValues(capability.String(), "allow").Inc()

	if sess.State() == types.StateContained {
		p.metrics.HoneypotRequests.WithLabelValues(string(honeypot.KindFor(req))).Inc()
		return p.honeypot.Dispatch(ctx, sess.ID, req)
	}

	timer := monitoring.NewCallTimer(p.metrics, capability.String())
	result, err := p.core.Execute(ctx, sess, approval)
	if err != nil {
		code := types.ErrorCode(err)
		timer.Stop(code)
		span.SetError(err)
		p.log.Debug("call failed",
			zap.String("session_id", sess.ID),
			zap.String("capability", capability.String()),
			zap.String("code", code),
		)
		return types.Fail(req.ID, code, err.Error())
	}
	timer.Stop("")
	return result
}

// seal encodes and encrypts one result for the session's outbound half.
func (p *Pipeline) seal(sess *isolation.Session, result *types.CallResult) (*channel.Envelope, error) {
	payload, err := p.codec.Encode(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	env, err := channel.Seal(sess.Keys, channel.HostToClient, sess.NextSendSeq(), payload)
	if err != nil {
		return nil, fmt.Errorf("seal result: %w", err)
	}
	p.metrics.EnvelopesOut.Inc()
	return env, nil
}
