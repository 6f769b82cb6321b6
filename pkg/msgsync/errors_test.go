package msgsync_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/msgsync/pkg/msgsync"
)

func TestInsertError(t *testing.T) {
	err := &msgsync.InsertError{Stream: 4, Op: "add", Err: msgsync.ErrStreamOutOfRange}

	assert.Equal(t, "add on stream 4: stream index out of range", err.Error())
	assert.ErrorIs(t, err, msgsync.ErrStreamOutOfRange)
	assert.NotErrorIs(t, err, msgsync.ErrHeaderlessNotAllowed)
}

func TestConfigError(t *testing.T) {
	err := &msgsync.ConfigError{Field: "slop", Err: msgsync.ErrNegativeSlop}

	assert.Equal(t, "invalid slop: slop must not be negative", err.Error())
	assert.ErrorIs(t, err, msgsync.ErrNegativeSlop)
}

func TestConsumerError(t *testing.T) {
	cause := errors.New("disk full")
	err := &msgsync.ConsumerError{Handle: 3, TupleID: "t-1", Err: cause}

	assert.Equal(t, "consumer 3 on tuple t-1: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestPanicError(t *testing.T) {
	err := &msgsync.PanicError{Handle: 2, TupleID: "t-9", Value: "nil map"}

	assert.Equal(t, "consumer 2 panicked on tuple t-9: nil map", err.Error())

	var target *msgsync.PanicError
	assert.True(t, errors.As(error(err), &target))
}
