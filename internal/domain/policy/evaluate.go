package policy

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Evaluate decides whether the context is permitted by this file.
// It is a pure function: deterministic, no I/O, never panics on policy data.
//
// Steps: agent lookup, parent gates, then first-match permission scan in
// declaration order. Conditions on the matching permission are checked in a
// fixed order (max_amount, currencies, folder_prefix) so the violation
// reported is deterministic.
func (f *File) Evaluate(ctx EvaluationContext) Decision {
	agent := f.findAgent(ctx.AgentID)
	if agent == nil {
		return Decision{
			Allow:   false,
			Reason:  fmt.Sprintf("Agent '%s' not found in policy", ctx.AgentID),
			Version: f.Version,
		}
	}

	if d, gated := f.checkParentGate(agent, ctx); gated {
		return d
	}

	for _, perm := range agent.Allow {
		if perm.Tool != ctx.Tool {
			continue
		}
		if !containsString(perm.Actions, ctx.Action) {
			continue
		}

		// First matching permission decides. Later permissions for the same
		// tool/action are never consulted.
		if len(perm.Conditions) > 0 {
			if violation := checkConditions(perm.Conditions, ctx.Params); violation != "" {
				return Decision{
					Allow:   false,
					Reason:  violation,
					Version: f.Version,
				}
			}
		}

		if perm.RequireApproval {
			frozen := ctx.Clone()
			return Decision{
				Allow:           false,
				Reason:          fmt.Sprintf("Action %s.%s requires approval", ctx.Tool, ctx.Action),
				Version:         f.Version,
				RequireApproval: true,
				ApprovalContext: &frozen,
			}
		}

		return Decision{
			Allow:   true,
			Reason:  "Policy allows this action",
			Version: f.Version,
		}
	}

	return Decision{
		Allow:   false,
		Reason:  fmt.Sprintf("No policy allows agent '%s' to perform %s.%s", ctx.AgentID, ctx.Tool, ctx.Action),
		Version: f.Version,
	}
}

func (f *File) findAgent(id string) *Agent {
	for i := range f.Agents {
		if f.Agents[i].ID == id {
			return &f.Agents[i]
		}
	}
	return nil
}

// checkParentGate applies deny_if_parent and allow_only_parents before any
// permission is examined. The bool result reports whether a gate fired.
func (f *File) checkParentGate(agent *Agent, ctx EvaluationContext) (Decision, bool) {
	if ctx.ParentAgent != "" {
		if containsString(agent.DenyIfParent, ctx.ParentAgent) {
			return Decision{
				Allow:   false,
				Reason:  fmt.Sprintf("Agent '%s' denied when called by parent '%s'", agent.ID, ctx.ParentAgent),
				Version: f.Version,
			}, true
		}
		if len(agent.AllowOnlyParents) > 0 && !containsString(agent.AllowOnlyParents, ctx.ParentAgent) {
			return Decision{
				Allow:   false,
				Reason:  fmt.Sprintf("Agent '%s' can only be called by: %v, not '%s'", agent.ID, agent.AllowOnlyParents, ctx.ParentAgent),
				Version: f.Version,
			}, true
		}
		return Decision{}, false
	}

	if len(agent.AllowOnlyParents) > 0 {
		return Decision{
			Allow:   false,
			Reason:  fmt.Sprintf("Agent '%s' requires a parent agent from: %v", agent.ID, agent.AllowOnlyParents),
			Version: f.Version,
		}, true
	}
	return Decision{}, false
}

// checkConditions runs the recognized condition keys against the call params
// and returns the first violation, or "" when all pass. Conditions are
// AND-combined. Unrecognized keys are ignored so newer policy files keep
// loading on older gateways.
func checkConditions(conditions map[string]interface{}, params map[string]interface{}) string {
	if raw, ok := conditions["max_amount"]; ok {
		maxAmount, ok := toFloat(raw)
		if !ok {
			return fmt.Sprintf("Invalid max_amount condition: %v", raw)
		}
		amountRaw, present := params["amount"]
		if !present || amountRaw == nil {
			return "Missing 'amount' parameter"
		}
		amount, ok := toFloat(amountRaw)
		if !ok {
			return "Invalid 'amount' parameter"
		}
		if amount > maxAmount {
			return fmt.Sprintf("Amount %.2f exceeds max_amount=%.2f", amount, maxAmount)
		}
	}

	if raw, ok := conditions["currencies"]; ok {
		allowed := toStringSlice(raw)
		currency, _ := params["currency"].(string)
		if currency == "" {
			return "Missing 'currency' parameter"
		}
		if !containsString(allowed, currency) {
			return fmt.Sprintf("Currency '%s' not in allowed list: %v", currency, allowed)
		}
	}

	if raw, ok := conditions["folder_prefix"]; ok {
		prefix, _ := raw.(string)
		path, _ := params["path"].(string)
		if path == "" {
			return "Missing 'path' parameter"
		}
		if !strings.HasPrefix(path, prefix) {
			return fmt.Sprintf("Path '%s' does not match folder_prefix='%s'", path, prefix)
		}
	}

	return ""
}

// toFloat coerces the numeric shapes YAML and JSON decoding produce.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// toStringSlice flattens the slice shapes YAML and JSON decoding produce.
func toStringSlice(v interface{}) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
