package compliance

import (
	"bytes"
	"encoding/json"
)

// MissingItem is the wire shape of one per-person missing-equipment entry.
// PersonID is a pointer so an absent id can be told apart from person 0.
type MissingItem struct {
	PersonID *int     `json:"person_id"`
	Missing  []string `json:"missing"`
}

// Section is the wire shape of a compliance section. The image endpoint sends an
// object; the video endpoint sends a bare boolean verdict. Both decode here.
type Section struct {
	Compliant    *bool         `json:"compliant"`
	Message      string        `json:"message"`
	MissingItems []MissingItem `json:"missing_items"`
	TotalPersons int           `json:"total_persons"`
}

// UnmarshalJSON accepts an object, a boolean or null. Any other shape decodes to an
// empty section instead of failing the whole response.
func (s *Section) UnmarshalJSON(data []byte) error {
	*s = Section{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	var verdict bool
	if err := json.Unmarshal(trimmed, &verdict); err == nil {
		s.Compliant = &verdict
		return nil
	}

	type plain Section
	var raw plain
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil
	}
	*s = Section(raw)
	return nil
}

// Payload is the raw input of Derive. Items is the stats-level missing list some
// responses carry beside (rather than inside) the compliance section.
type Payload struct {
	Section *Section
	Items   []MissingItem
}
