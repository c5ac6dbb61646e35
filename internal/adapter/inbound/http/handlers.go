package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aegis-gate/aegisgate/internal/service"
)

// errorResponse is the JSON body for non-2xx responses.
type errorResponse struct {
	Detail string `json:"detail"`
}

// approvalRequiredResponse is the 202 body for a suspended call.
type approvalRequiredResponse struct {
	Status     string `json:"status"`
	ApprovalID string `json:"approval_id"`
	Reason     string `json:"reason"`
}

// handleToolCall serves POST /tools/{tool}/{action}: the single mediated
// entry point agents call instead of the tool itself.
func (t *Transport) handleToolCall(w http.ResponseWriter, r *http.Request) {
	toolName := r.PathValue("tool")
	action := r.PathValue("action")

	agentID := r.Header.Get("X-Agent-ID")
	if agentID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "X-Agent-ID header is required"})
		return
	}

	params, err := decodeParams(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "request body must be a JSON object"})
		return
	}

	resp, err := t.pipeline.Admit(r.Context(), service.AdmissionRequest{
		AgentID:     agentID,
		ParentAgent: r.Header.Get("X-Parent-Agent"),
		Tool:        toolName,
		Action:      action,
		Params:      params,
		ApprovalID:  r.Header.Get("X-Approval-ID"),
	})
	t.writeAdmissionResult(w, r, toolName, resp, err)
}

// handleApprove serves POST /approve/{approval_id}: a human approves a
// suspended call, which is then executed and its tool response returned.
func (t *Transport) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("approval_id")

	resp, err := t.pipeline.Approve(r.Context(), id)
	if err != nil {
		t.writeAdmissionResult(w, r, "", nil, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "approved",
		"approval_id": id,
		"result":      resp,
	})
}

// writeAdmissionResult maps the pipeline's error taxonomy onto HTTP status
// codes: 200 tool response, 202 suspended, 403 denied, 404 unknown
// approval, 502 tool failure.
func (t *Transport) writeAdmissionResult(w http.ResponseWriter, r *http.Request, toolName string, resp map[string]interface{}, err error) {
	if err == nil {
		t.countAdmission(toolName, "allowed")
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if ap, ok := service.AsApprovalPending(err); ok {
		t.countAdmission(toolName, "approval_required")
		writeJSON(w, http.StatusAccepted, approvalRequiredResponse{
			Status:     "approval_required",
			ApprovalID: ap.ApprovalID,
			Reason:     ap.Reason,
		})
		return
	}
	if errors.Is(err, service.ErrApprovalNotFound) {
		t.countAdmission(toolName, "approval_not_found")
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: err.Error()})
		return
	}
	if pv, ok := service.AsPolicyViolation(err); ok {
		t.countAdmission(toolName, "denied")
		writeJSON(w, http.StatusForbidden, errorResponse{Detail: pv.Reason})
		return
	}
	if tc, ok := service.AsToolCall(err); ok {
		t.countAdmission(toolName, "tool_error")
		writeJSON(w, http.StatusBadGateway, errorResponse{Detail: tc.Error()})
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// Client is gone; nothing useful to write.
		t.countAdmission(toolName, "client_cancelled")
		return
	}

	t.logger.Error("admission failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
	t.countAdmission(toolName, "error")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "internal error"})
}

func (t *Transport) countAdmission(toolName, outcome string) {
	if t.metrics == nil {
		return
	}
	if toolName == "" {
		toolName = "approval"
	}
	t.metrics.AdmissionsTotal.WithLabelValues(toolName, outcome).Inc()
}

// decodeParams parses the request body into a params map. An empty body is
// an empty map; anything else must be a JSON object.
func decodeParams(body io.Reader) (map[string]interface{}, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return map[string]interface{}{}, nil
	}

	var params map[string]interface{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	return params, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
