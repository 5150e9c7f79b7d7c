package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	specific := NewDomainError("NOT_FOUND", "Item 42 not found")

	assert.True(t, errors.Is(specific, ErrNotFound))
	assert.True(t, errors.Is(fmt.Errorf("lookup: %w", specific), ErrNotFound))
	assert.False(t, errors.Is(specific, ErrInvalidInput))
	assert.False(t, errors.Is(errors.New("NOT_FOUND"), ErrNotFound))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "INVALID_STATE", CodeOf(fmt.Errorf("wrapped: %w", ErrInvalidState)))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))
}

func TestNewPaginated(t *testing.T) {
	p := NewPaginated([]int{1, 2}, 41, 2, 20)
	assert.Equal(t, 3, p.TotalPages)

	empty := NewPaginated([]int{}, 0, 1, 0)
	assert.Equal(t, 0, empty.TotalPages)
}

func TestFilter_Offset(t *testing.T) {
	assert.Equal(t, 0, Filter{Page: 1, PageSize: 20}.Offset())
	assert.Equal(t, 40, Filter{Page: 3, PageSize: 20}.Offset())
	assert.Equal(t, 0, Filter{Page: 0, PageSize: 20}.Offset())
}
