package tracking

// SelectionReader read-only access to the focused unit.
type SelectionReader interface {
	Selected() (unitID string, ok bool)
}

// SelectionController owns the operator's focus. It is the only writer of
// selection state; everything else gets a SelectionReader.
type SelectionController struct {
	selected string
	has      bool
}

// NewSelectionController starts with nothing selected.
func NewSelectionController() *SelectionController {
	return &SelectionController{}
}

// Toggle deselects unitID if it is selected, otherwise selects it.
func (s *SelectionController) Toggle(unitID string) {
	if s.has && s.selected == unitID {
		s.Clear()
		return
	}
	s.selected = unitID
	s.has = true
}

// Clear drops the selection.
func (s *SelectionController) Clear() {
	s.selected = ""
	s.has = false
}

// Selected implements SelectionReader.
func (s *SelectionController) Selected() (string, bool) {
	return s.selected, s.has
}

// IsSelected reports whether unitID is the focused unit.
func (s *SelectionController) IsSelected(unitID string) bool {
	return s.has && s.selected == unitID
}
