// Package policy contains the declarative policy data model and its
// deterministic evaluator.
package policy

// Permission grants an agent one tool/action combination, optionally
// narrowed by conditions or gated behind human approval.
type Permission struct {
	// Tool is the tool name this permission applies to (e.g. "payments").
	Tool string `yaml:"tool" json:"tool"`
	// Actions are the tool actions covered by this permission (e.g. "create").
	Actions []string `yaml:"actions" json:"actions"`
	// Conditions optionally narrow the permission. Unknown keys are ignored
	// for forward compatibility.
	Conditions map[string]interface{} `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	// RequireApproval suspends matching calls until a human approves them.
	RequireApproval bool `yaml:"require_approval,omitempty" json:"require_approval,omitempty"`
}

// Agent maps an agent id to its ordered permission list and parent gates.
type Agent struct {
	// ID is the agent identifier, unique within a policy file.
	ID string `yaml:"id" json:"id"`
	// Allow is the ordered permission list. Only the first entry matching a
	// given tool/action is consulted; later entries for the same pair are
	// dead code. Policy authors should order narrow permissions first.
	Allow []Permission `yaml:"allow" json:"allow"`
	// DenyIfParent blocks calls delegated by any of the listed parents.
	DenyIfParent []string `yaml:"deny_if_parent,omitempty" json:"deny_if_parent,omitempty"`
	// AllowOnlyParents restricts calls to delegations from the listed
	// parents. When set, direct (parentless) calls are denied too.
	AllowOnlyParents []string `yaml:"allow_only_parents,omitempty" json:"allow_only_parents,omitempty"`
}

// File is a single parsed policy document.
type File struct {
	// Version is the author-assigned policy version, must be positive.
	Version int `yaml:"version" json:"version"`
	// Agents are the agents this file grants permissions to.
	Agents []Agent `yaml:"agents" json:"agents"`
}

// EvaluationContext carries one inbound tool call into the evaluator.
// Params are opaque except where conditions inspect well-known keys.
type EvaluationContext struct {
	AgentID     string                 `json:"agent_id"`
	Tool        string                 `json:"tool"`
	Action      string                 `json:"action"`
	Params      map[string]interface{} `json:"params"`
	ParentAgent string                 `json:"parent_agent,omitempty"`
}

// Clone returns a deep copy of the context. Used to freeze the triggering
// context into a Decision's ApprovalContext.
func (c EvaluationContext) Clone() EvaluationContext {
	out := c
	if c.Params != nil {
		out.Params = make(map[string]interface{}, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	return out
}

// Decision is the outcome of evaluating one context against policy.
//
// Invariant: RequireApproval implies !Allow. An approval-gated call does not
// pass evaluation; it is suspended until re-submitted with an approval id.
type Decision struct {
	// Allow is true when the call may proceed to the tool.
	Allow bool `json:"allow"`
	// Reason explains the decision. Always populated.
	Reason string `json:"reason"`
	// Version is the version of the policy file that decided.
	Version int `json:"version"`
	// RequireApproval marks the call as suspended pending human approval.
	RequireApproval bool `json:"require_approval,omitempty"`
	// ApprovalContext is a frozen copy of the triggering context, set only
	// when RequireApproval is true.
	ApprovalContext *EvaluationContext `json:"approval_context,omitempty"`
}

// Stats summarizes a loaded policy set for health reporting.
type Stats struct {
	PolicyFiles int `json:"policy_files"`
	TotalAgents int `json:"total_agents"`
}
