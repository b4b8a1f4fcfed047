package core_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/recallhq/recall-go/pkg/core"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "ErrInvalidRating",
			err:      core.ErrInvalidRating,
			expected: "invalid rating",
		},
		{
			name:     "ErrQuestionNotFound",
			err:      core.ErrQuestionNotFound,
			expected: "question not found",
		},
		{
			name:     "ErrCapacityExceeded",
			err:      core.ErrCapacityExceeded,
			expected: "daily capacity exceeded",
		},
		{
			name:     "ErrDuplicateEvent",
			err:      core.ErrDuplicateEvent,
			expected: "duplicate grading event",
		},
		{
			name:     "ErrStorageUnavailable",
			err:      core.ErrStorageUnavailable,
			expected: "storage unavailable",
		},
		{
			name:     "ErrInvalidConfig",
			err:      core.ErrInvalidConfig,
			expected: "invalid configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestSchedulerError(t *testing.T) {
	originalErr := errors.New("original error")
	schedErr := core.NewSchedulerError("test_operation", originalErr)

	assert.Equal(t, "recall: test_operation: original error", schedErr.Error())
	assert.ErrorIs(t, schedErr, originalErr)

	var typed *core.SchedulerError
	assert.ErrorAs(t, schedErr, &typed)
	assert.Equal(t, "test_operation", typed.Op)
}

func TestNewSchedulerError_NilPassthrough(t *testing.T) {
	assert.Nil(t, core.NewSchedulerError("anything", nil))
}

func TestSchedulerError_WrapsSentinels(t *testing.T) {
	err := core.NewSchedulerError("ApplyRating", core.ErrInvalidRating)
	assert.ErrorIs(t, err, core.ErrInvalidRating)
	assert.Equal(t, "recall: ApplyRating: invalid rating", err.Error())
}
