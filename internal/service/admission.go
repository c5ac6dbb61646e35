// Package service contains the admission pipeline: the orchestration that
// takes an inbound tool call through evaluation, the approval gate, the
// forwarder, and the audit trail.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aegis-gate/aegisgate/internal/domain/approval"
	"github.com/aegis-gate/aegisgate/internal/domain/audit"
	"github.com/aegis-gate/aegisgate/internal/domain/history"
	"github.com/aegis-gate/aegisgate/internal/domain/policy"
	"github.com/aegis-gate/aegisgate/internal/domain/tool"
)

// AdmissionRequest is one inbound tool call.
type AdmissionRequest struct {
	AgentID     string
	ParentAgent string
	Tool        string
	Action      string
	Params      map[string]interface{}
	// ApprovalID, when set, references a previously issued approval.
	ApprovalID string
}

// PolicySource yields the current policy snapshot. Implemented by the
// policyfs store; the pipeline reads the snapshot once per admission and
// evaluates entirely against it, so a concurrent reload never splits a
// decision across two policy sets.
type PolicySource interface {
	Snapshot() *policy.Snapshot
}

// Pipeline admits tool calls. All collaborators are injected; the pipeline
// holds no global state and is safe for concurrent use.
type Pipeline struct {
	policies  PolicySource
	gate      *approval.Gate
	forwarder tool.Forwarder
	sink      audit.Sink
	history   *history.Ring
	logger    *slog.Logger
}

// NewPipeline wires an admission pipeline.
func NewPipeline(
	policies PolicySource,
	gate *approval.Gate,
	forwarder tool.Forwarder,
	sink audit.Sink,
	ring *history.Ring,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		policies:  policies,
		gate:      gate,
		forwarder: forwarder,
		sink:      sink,
		history:   ring,
		logger:    logger,
	}
}

// Admit runs one call through the pipeline and returns the tool response,
// or an error from the taxonomy in this package.
//
// Policy is always re-evaluated, even when the call carries an approval
// id: the approval only suppresses the require_approval gate when the same
// (agent, tool, action, params) arrives again with the matching id. A
// policy edit between approval issue and use therefore changes the
// outcome; stale approvals never bypass current policy.
func (p *Pipeline) Admit(ctx context.Context, req AdmissionRequest) (map[string]interface{}, error) {
	var consumed *approval.Request
	if req.ApprovalID != "" {
		var err error
		consumed, err = p.gate.Consume(req.ApprovalID)
		if err != nil {
			return nil, fmt.Errorf("approval %s: %w", req.ApprovalID, err)
		}
	}

	evalCtx := policy.EvaluationContext{
		AgentID:     req.AgentID,
		Tool:        req.Tool,
		Action:      req.Action,
		Params:      req.Params,
		ParentAgent: req.ParentAgent,
	}

	t0 := time.Now()
	decision := p.policies.Snapshot().Evaluate(evalCtx)
	policyLatency := audit.RoundLatency(float64(time.Since(t0).Microseconds()) / 1000)

	if decision.RequireApproval {
		if consumed != nil && approvalMatches(consumed, evalCtx) {
			// Second phase of the handshake: the human approved exactly
			// this call, so the gate is satisfied.
			decision.Allow = true
			return p.forward(ctx, req, decision, policyLatency)
		}
		if consumed != nil {
			// The id was real but covers a different call. The entry is
			// already consumed; denying here keeps approvals single-use.
			reason := fmt.Sprintf("approval %s does not cover this request", req.ApprovalID)
			p.emit(ctx, req, decision, history.OutcomeDenied, reason, policyLatency, 0)
			return nil, &PolicyViolationError{Reason: reason, Version: decision.Version}
		}

		id := p.gate.Create(*decision.ApprovalContext)
		rec := p.record(req, decision, history.OutcomeApprovalRequired, decision.Reason, policyLatency, 0)
		rec.ApprovalID = id
		p.sink.Record(ctx, rec)
		p.appendHistory(rec)
		return nil, &ApprovalPendingError{ApprovalID: id, Reason: decision.Reason}
	}

	if !decision.Allow {
		p.emit(ctx, req, decision, history.OutcomeDenied, decision.Reason, policyLatency, 0)
		return nil, &PolicyViolationError{Reason: decision.Reason, Version: decision.Version}
	}

	return p.forward(ctx, req, decision, policyLatency)
}

// Approve executes a suspended call on behalf of a human approver. The
// stored context is consumed and re-evaluated against the current snapshot
// before the tool is called, so a policy edit made while the approval sat
// pending can still deny the call.
func (p *Pipeline) Approve(ctx context.Context, approvalID string) (map[string]interface{}, error) {
	consumed, err := p.gate.Consume(approvalID)
	if err != nil {
		return nil, fmt.Errorf("approval %s: %w", approvalID, err)
	}

	stored := consumed.Context
	req := AdmissionRequest{
		AgentID:     stored.AgentID,
		ParentAgent: stored.ParentAgent,
		Tool:        stored.Tool,
		Action:      stored.Action,
		Params:      stored.Params,
		ApprovalID:  approvalID,
	}

	t0 := time.Now()
	decision := p.policies.Snapshot().Evaluate(stored)
	policyLatency := audit.RoundLatency(float64(time.Since(t0).Microseconds()) / 1000)

	if decision.Allow || decision.RequireApproval {
		decision.Allow = true
		return p.forward(ctx, req, decision, policyLatency)
	}

	p.emit(ctx, req, decision, history.OutcomeDenied, decision.Reason, policyLatency, 0)
	return nil, &PolicyViolationError{Reason: decision.Reason, Version: decision.Version}
}

// forward invokes the tool and audits the outcome. The transport may have
// cancelled while we evaluated; in that case the tool is never called and
// the abandonment is still audited.
func (p *Pipeline) forward(ctx context.Context, req AdmissionRequest, decision policy.Decision, policyLatency float64) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		p.emit(ctx, req, decision, history.OutcomeClientCancelled,
			fmt.Sprintf("client cancelled before forward: %s", decision.Reason), policyLatency, 0)
		return nil, err
	}

	t1 := time.Now()
	resp, err := p.forwarder.Forward(ctx, req.Tool, req.Action, req.Params)
	toolLatency := audit.RoundLatency(float64(time.Since(t1).Microseconds()) / 1000)

	if err != nil {
		p.emit(ctx, req, decision, history.OutcomeToolError,
			fmt.Sprintf("Policy allows, but tool error: %v", err), policyLatency, toolLatency)
		return nil, &ToolCallError{Err: err}
	}

	p.emit(ctx, req, decision, history.OutcomeAllowed, decision.Reason, policyLatency, toolLatency)
	return resp, nil
}

// approvalMatches reports whether a consumed approval covers the inbound
// call: same agent, tool, action, and canonically equal params.
func approvalMatches(consumed *approval.Request, evalCtx policy.EvaluationContext) bool {
	stored := consumed.Context
	return stored.AgentID == evalCtx.AgentID &&
		stored.Tool == evalCtx.Tool &&
		stored.Action == evalCtx.Action &&
		audit.HashParams(stored.Params) == audit.HashParams(evalCtx.Params)
}

func (p *Pipeline) record(req AdmissionRequest, decision policy.Decision, outcome history.Outcome, reason string, policyLatency, toolLatency float64) audit.Record {
	return audit.Record{
		Timestamp:     time.Now().UTC(),
		AgentID:       req.AgentID,
		ToolName:      req.Tool,
		ToolAction:    req.Action,
		DecisionAllow: decision.Allow,
		Reason:        reason,
		PolicyVersion: decision.Version,
		ParamsHash:    audit.HashParams(req.Params),
		LatencyMS:     policyLatency,
		Outcome:       string(outcome),
		ParentAgent:   req.ParentAgent,
		ApprovalID:    req.ApprovalID,
		ToolLatencyMS: toolLatency,
	}
}

func (p *Pipeline) emit(ctx context.Context, req AdmissionRequest, decision policy.Decision, outcome history.Outcome, reason string, policyLatency, toolLatency float64) {
	rec := p.record(req, decision, outcome, reason, policyLatency, toolLatency)
	p.sink.Record(ctx, rec)
	p.appendHistory(rec)
}

func (p *Pipeline) appendHistory(rec audit.Record) {
	p.history.Append(history.Entry{
		Timestamp:   rec.Timestamp,
		AgentID:     rec.AgentID,
		Tool:        rec.ToolName,
		Action:      rec.ToolAction,
		Outcome:     history.Outcome(rec.Outcome),
		Reason:      rec.Reason,
		ParentAgent: rec.ParentAgent,
		ApprovalID:  rec.ApprovalID,
	})
}
