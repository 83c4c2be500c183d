package capability

import "fmt"

// Wire binds a requirement to the capability that satisfies it. Wires are
// comparable values so they can be deduplicated in maps.
type Wire struct {
	requirement *Requirement
	capability  *Capability
}

// NewWire creates a wire from req to cap.
func NewWire(req *Requirement, cap *Capability) Wire {
	return Wire{requirement: req, capability: cap}
}

// Requirement returns the wire's requirement end.
func (w Wire) Requirement() *Requirement { return w.requirement }

// Capability returns the wire's capability end.
func (w Wire) Capability() *Capability { return w.capability }

// Requirer returns the resource declaring the requirement, which may be nil
// for standalone requirements.
func (w Wire) Requirer() *Resource { return w.requirement.Resource() }

// Provider returns the resource offering the capability.
func (w Wire) Provider() *Resource { return w.capability.Resource() }

func (w Wire) String() string {
	return fmt.Sprintf("%v -> %v", w.requirement, w.capability)
}
