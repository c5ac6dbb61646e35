package policy

import "fmt"

// Validate checks the structural constraints on a parsed policy file.
// It returns the first failure encountered, or nil when the file is valid.
// A file failing validation is rejected whole; the loader keeps whatever
// prior version of it is already published.
func (f *File) Validate() error {
	if f.Version <= 0 {
		return fmt.Errorf("version must be positive, got %d", f.Version)
	}

	if len(f.Agents) == 0 {
		return fmt.Errorf("at least one agent must be defined")
	}

	seen := make(map[string]struct{}, len(f.Agents))
	for _, agent := range f.Agents {
		if agent.ID == "" {
			return fmt.Errorf("agent id is required")
		}
		if _, dup := seen[agent.ID]; dup {
			return fmt.Errorf("duplicate agent id: %s", agent.ID)
		}
		seen[agent.ID] = struct{}{}

		if len(agent.Allow) == 0 {
			return fmt.Errorf("agent %s: at least one permission required", agent.ID)
		}

		for _, perm := range agent.Allow {
			if perm.Tool == "" {
				return fmt.Errorf("agent %s: tool is required", agent.ID)
			}
			if len(perm.Actions) == 0 {
				return fmt.Errorf("agent %s: at least one action required", agent.ID)
			}
		}
	}

	return nil
}
