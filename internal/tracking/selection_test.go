package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectionController_Toggle(t *testing.T) {
	s := NewSelectionController()
	_, ok := s.Selected()
	assert.False(t, ok)

	s.Toggle("U1")
	id, ok := s.Selected()
	assert.True(t, ok)
	assert.Equal(t, "U1", id)

	s.Toggle("U2")
	id, _ = s.Selected()
	assert.Equal(t, "U2", id, "toggling another unit moves the focus")
	assert.False(t, s.IsSelected("U1"))

	s.Toggle("U2")
	_, ok = s.Selected()
	assert.False(t, ok, "toggling the selected unit clears")
}

func TestSelectionController_Clear(t *testing.T) {
	s := NewSelectionController()
	s.Toggle("U1")
	s.Clear()
	assert.False(t, s.IsSelected("U1"))

	s.Clear()
	_, ok := s.Selected()
	assert.False(t, ok)
}
