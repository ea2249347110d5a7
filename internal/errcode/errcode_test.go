package errcode

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOf_Nil(t *testing.T) {
	assert.Equal(t, OK, Of(nil))
}

func TestOf_BareCode(t *testing.T) {
	assert.Equal(t, MissingRequiredField, Of(MissingRequiredField))
}

func TestOf_WrappedE(t *testing.T) {
	err := fmt.Errorf("push: %w", Wrap(StorageUnavailable, "telemetry.save", errors.New("disk full")))
	assert.Equal(t, StorageUnavailable, Of(err))
	assert.True(t, errors.Is(err, StorageUnavailable))
	assert.False(t, errors.Is(err, NoData))
}

func TestOf_Unclassified(t *testing.T) {
	assert.Equal(t, Error, Of(errors.New("boom")))
}

func TestWrap_NilStaysNil(t *testing.T) {
	assert.NoError(t, Wrap(StorageUnavailable, "op", nil))
}

func TestCause(t *testing.T) {
	err := Wrap(StorageUnavailable, "op", errors.New("no such table: current_status"))
	assert.Equal(t, "no such table: current_status", Cause(err))
	assert.Equal(t, "op: storage_unavailable: no such table: current_status", err.Error())
	assert.Equal(t, "", Cause(nil))
}
