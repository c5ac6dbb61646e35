package http

import (
	"net/http"
	"strconv"

	"github.com/aegis-gate/aegisgate/internal/domain/audit"
	"github.com/aegis-gate/aegisgate/internal/domain/policy"
)

// agentSummary is one agent as listed by GET /admin/agents.
type agentSummary struct {
	AgentID          string              `json:"agent_id"`
	Permissions      []policy.Permission `json:"permissions"`
	DenyIfParent     []string            `json:"deny_if_parent,omitempty"`
	AllowOnlyParents []string            `json:"allow_only_parents,omitempty"`
}

// policySummary is one loaded policy file as listed by GET /admin/policies.
type policySummary struct {
	Path    string `json:"path"`
	Version int    `json:"version"`
	Agents  int    `json:"agents"`
}

// pendingApproval is one suspended call as listed by
// GET /admin/approvals/pending. Params are redacted before leaving the
// process.
type pendingApproval struct {
	ID        string                 `json:"id"`
	CreatedAt string                 `json:"created_at"`
	AgentID   string                 `json:"agent_id"`
	Tool      string                 `json:"tool"`
	Action    string                 `json:"action"`
	Params    map[string]interface{} `json:"params"`
}

// handleAdminAgents lists every agent across the active snapshot.
func (t *Transport) handleAdminAgents(w http.ResponseWriter, r *http.Request) {
	agents := t.policies.Snapshot().Agents()

	out := make([]agentSummary, 0, len(agents))
	for _, a := range agents {
		out = append(out, agentSummary{
			AgentID:          a.ID,
			Permissions:      a.Allow,
			DenyIfParent:     a.DenyIfParent,
			AllowOnlyParents: a.AllowOnlyParents,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"agents": out})
}

// handleAdminPolicies lists the loaded policy files in evaluation order.
func (t *Transport) handleAdminPolicies(w http.ResponseWriter, r *http.Request) {
	snap := t.policies.Snapshot()

	out := make([]policySummary, 0, snap.Len())
	for _, path := range snap.Paths() {
		f := snap.File(path)
		out = append(out, policySummary{
			Path:    path,
			Version: f.Version,
			Agents:  len(f.Agents),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"policies": out})
}

// handleAdminDecisions returns the recent decision history, newest last.
// The limit query parameter caps the count; default is everything held.
func (t *Transport) handleAdminDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	entries := t.history.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{"decisions": entries})
}

// handleAdminPendingApprovals lists suspended calls, oldest first.
func (t *Transport) handleAdminPendingApprovals(w http.ResponseWriter, r *http.Request) {
	pending := t.gate.Pending()

	out := make([]pendingApproval, 0, len(pending))
	for _, req := range pending {
		out = append(out, pendingApproval{
			ID:        req.ID,
			CreatedAt: req.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
			AgentID:   req.Context.AgentID,
			Tool:      req.Context.Tool,
			Action:    req.Context.Action,
			Params:    audit.RedactSensitiveParams(req.Context.Params),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pending": out})
}

// handleHealth reports liveness and the size of the active policy set.
func (t *Transport) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": t.version,
		"policy":  t.policies.Snapshot().Stats(),
	})
}
