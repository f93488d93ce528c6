package audit

// CUnit is a controllable unit: a registered namespace that owns a family
// of audit events.
type CUnit struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Owners      []string `json:"owners,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Clone returns a copy of c that shares no slices with it.
func (c CUnit) Clone() CUnit {
	c.Owners = append([]string(nil), c.Owners...)
	c.Tags = append([]string(nil), c.Tags...)
	return c
}
