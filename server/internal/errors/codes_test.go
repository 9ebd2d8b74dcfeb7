package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedgerErrorMessage(t *testing.T) {
	err := Validation("bad time %q", "25:00")
	assert.Equal(t, `[VALIDATION] bad time "25:00"`, err.Error())

	cause := stderrors.New("connection reset")
	wrapped := RemoteWrite("write attendance", cause)
	assert.Equal(t, "[REMOTE_WRITE] write attendance: connection reset", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestCodePredicatesSeeThroughWrapping(t *testing.T) {
	base := StructureConflict("periods p1 and p2 share a window")
	err := fmt.Errorf("save structure: %w", base)

	assert.True(t, IsStructureConflict(err))
	assert.False(t, IsValidation(err))
	assert.Equal(t, ErrCodeStructureConflict, CodeOf(err, ErrCodeNotFound))
	assert.Equal(t, ErrCodeNotFound, CodeOf(stderrors.New("plain"), ErrCodeNotFound))
}

func TestWithContext(t *testing.T) {
	err := NotFound("attendance log").WithContext("log_id", "l-1")
	assert.Equal(t, "l-1", err.Context["log_id"])
	assert.Equal(t, ErrCodeNotFound, err.GetCode())
}
