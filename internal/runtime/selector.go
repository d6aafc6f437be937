package runtime

import (
	"bytes"
	"encoding/json"
)

// Selector models the recurring "any" | hostIds[] / backendIds[] union
// found on Backend.HostFilters, Model.HostPolicy, and Model.BackendPolicy.
type Selector struct {
	Any bool
	IDs []string
}

// Matches reports whether id satisfies the selector.
func (s Selector) Matches(id string) bool {
	if s.Any {
		return true
	}
	for _, candidate := range s.IDs {
		if candidate == id {
			return true
		}
	}
	return false
}

func (s Selector) MarshalJSON() ([]byte, error) {
	if s.Any {
		return json.Marshal("any")
	}
	return json.Marshal(s.IDs)
}

func (s *Selector) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return err
		}
		*s = Selector{Any: str == "any"}
		if str != "any" {
			s.IDs = []string{str}
		}
		return nil
	}

	var ids []string
	if err := json.Unmarshal(trimmed, &ids); err != nil {
		return err
	}
	*s = Selector{IDs: ids}
	return nil
}
