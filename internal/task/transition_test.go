package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []Status{StatusToDo, StatusProgress, StatusReview, StatusDone, StatusCancel}

func TestIsValidTransition(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusToDo, StatusProgress}:     true,
		{StatusToDo, StatusCancel}:       true,
		{StatusProgress, StatusToDo}:     true,
		{StatusProgress, StatusReview}:   true,
		{StatusProgress, StatusCancel}:   true,
		{StatusReview, StatusDone}:       true,
		{StatusReview, StatusProgress}:   true,
		{StatusReview, StatusCancel}:     true,
		{StatusDone, StatusCancel}:       true,
		{StatusCancel, StatusToDo}:       true,
	}

	// Check the full 5x5 grid so a new edge cannot sneak in unnoticed.
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := allowed[[2]Status{from, to}]
			assert.Equal(t, want, IsValidTransition(from, to), "from=%s to=%s", from, to)
		}
	}
}

func TestIsValidTransitionRejectsSelf(t *testing.T) {
	for _, s := range allStatuses {
		assert.False(t, IsValidTransition(s, s), "self-transition %s", s)
	}
}

func TestIsValidTransitionUnknownStatus(t *testing.T) {
	assert.False(t, IsValidTransition("archived", StatusToDo))
	assert.False(t, IsValidTransition(StatusToDo, "archived"))
	assert.False(t, IsValidTransition("", ""))
}

func TestParseStatus(t *testing.T) {
	for _, s := range allStatuses {
		got, ok := ParseStatus(string(s))
		assert.True(t, ok)
		assert.Equal(t, s, got)
	}
	_, ok := ParseStatus("in_progress")
	assert.False(t, ok)
	_, ok = ParseStatus("")
	assert.False(t, ok)
}

func TestParsePriority(t *testing.T) {
	p, ok := ParsePriority("")
	assert.True(t, ok)
	assert.Equal(t, PriorityMedium, p)

	_, ok = ParsePriority("urgent")
	assert.False(t, ok)
}
