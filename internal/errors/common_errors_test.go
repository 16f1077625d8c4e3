package errors

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without cause",
			err:  NewDataError("missing Month column", nil),
			want: "[DATA] missing Month column",
		},
		{
			name: "with cause",
			err:  NewStorageError("save table inventory", fmt.Errorf("disk full")),
			want: "[STORAGE] save table inventory: disk full",
		},
		{
			name: "input not found",
			err:  NewInputNotFoundError("table inventory", nil),
			want: "[INPUT_NOT_FOUND] table inventory not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	err := NewInputNotFoundError("file data.csv", os.ErrNotExist)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	wrapped := fmt.Errorf("ingest: %w", err)
	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, ErrTypeInputNotFound, appErr.Type)
	assert.Equal(t, "file data.csv", appErr.Context["resource"])
}

func TestAppError_Is(t *testing.T) {
	err := fmt.Errorf("preprocess: %w", NewDataError("raw table is empty", nil))

	assert.True(t, errors.Is(err, &AppError{Type: ErrTypeData}))
	assert.True(t, errors.Is(err, &AppError{Type: ErrTypeData, Message: "raw table is empty"}))
	assert.False(t, errors.Is(err, &AppError{Type: ErrTypeData, Message: "other"}))
	assert.False(t, errors.Is(err, &AppError{Type: ErrTypeStorage}))
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		notFound  bool
		data      bool
		skipped   bool
		storage   bool
		validated bool
	}{
		{name: "input not found", err: NewInputNotFoundError("x", nil), notFound: true},
		{name: "data", err: fmt.Errorf("wrap: %w", NewDataError("bad", nil)), data: true},
		{name: "skipped", err: NewComputationSkipped("Gloves", "restock", "no usage data"), skipped: true},
		{name: "storage", err: NewStorageError("s", nil), storage: true},
		{name: "validation", err: NewAppValidationError("window must be >= 1"), validated: true},
		{name: "plain error", err: errors.New("boom")},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, IsInputNotFound(tt.err))
			assert.Equal(t, tt.data, IsDataError(tt.err))
			assert.Equal(t, tt.skipped, IsComputationSkipped(tt.err))
			assert.Equal(t, tt.storage, IsStorageError(tt.err))
			assert.Equal(t, tt.validated, IsValidationError(tt.err))
		})
	}
}

func TestComputationSkippedContext(t *testing.T) {
	err := NewComputationSkipped("Gloves", "restock", "no capacity configured")
	assert.Equal(t, "Gloves", err.Context["item"])
	assert.Equal(t, "restock", err.Context["analysis"])
	assert.Contains(t, err.Error(), "no capacity configured")
}
