package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartition_StableAndInRange(t *testing.T) {
	key := []byte("8a1f6c1e-0000-4000-8000-000000000001")
	p := Partition(key, 8)

	assert.Equal(t, p, Partition(key, 8))
	assert.GreaterOrEqual(t, p, 0)
	assert.Less(t, p, 8)
	assert.Equal(t, 0, Partition(key, 1))
	assert.Equal(t, 0, Partition(key, 0))
}

func TestDispatch_RecoversPanic(t *testing.T) {
	err := Dispatch(context.Background(), func(context.Context, Message) error {
		panic("boom")
	}, Message{Topic: "t"})

	assert.ErrorContains(t, err, "handler panic: boom")
}

func TestDispatch_ReturnsHandlerError(t *testing.T) {
	want := errors.New("bad payload")
	err := Dispatch(context.Background(), func(context.Context, Message) error {
		return want
	}, Message{Topic: "t"})

	assert.ErrorIs(t, err, want)
}
