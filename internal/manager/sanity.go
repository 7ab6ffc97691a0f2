package manager

import "clinicd/pkg/types"

// CategoryCheck is the sanity result for one category.
type CategoryCheck struct {
	Category  string `json:"category"`
	Backend   string `json:"backend,omitempty"`
	Device    string `json:"device"`
	Optimized bool   `json:"optimized"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// SanityReport describes placement and artifact checks for every category.
type SanityReport struct {
	Device     string          `json:"device"`
	OK         bool            `json:"ok"`
	Categories []CategoryCheck `json:"categories"`
}

// SanityCheck validates that every category has a loader and that loaders
// implementing Checker find their artifacts. It does not load anything and is
// safe to call at any time.
func (m *Manager) SanityCheck() SanityReport {
	r := SanityReport{Device: m.Device(), OK: true}
	for _, c := range types.Categories {
		s := m.slots[c]
		cc := CategoryCheck{
			Category:  string(c),
			Backend:   describe(s.loader),
			Device:    string(s.placement.Kind),
			Optimized: s.placement.Optimized,
			OK:        true,
		}
		switch {
		case s.loader == nil:
			cc.OK, cc.Error = false, errNoLoader.Error()
		default:
			if ch, ok := s.loader.(Checker); ok {
				if err := ch.Check(); err != nil {
					cc.OK, cc.Error = false, err.Error()
				}
			}
		}
		if !cc.OK && m.isRequired(c) {
			r.OK = false
		}
		r.Categories = append(r.Categories, cc)
	}
	return r
}

func (m *Manager) isRequired(c types.Category) bool {
	for _, r := range m.required {
		if r == c {
			return true
		}
	}
	return false
}
