package hub

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidechat/server/internal/v1/errs"
)

func TestSender_SendAfterClose(t *testing.T) {
	s := NewSender(uuid.New())
	s.Close()

	assert.ErrorIs(t, s.Send([]byte("x")), errs.ErrSendClosed)
}

func TestSender_CloseIsIdempotent(t *testing.T) {
	s := NewSender(uuid.New())
	s.Close()
	s.Close()
}

func TestSender_FullBufferDoesNotBlock(t *testing.T) {
	s := NewSender(uuid.New())
	for i := 0; i < senderBuffer; i++ {
		require.NoError(t, s.Send([]byte("x")))
	}

	assert.ErrorIs(t, s.Send([]byte("overflow")), errs.ErrSendClosed)
}

func TestSender_OutboxPreservesOrder(t *testing.T) {
	s := NewSender(uuid.New())
	require.NoError(t, s.Send([]byte("a")))
	require.NoError(t, s.Send([]byte("b")))

	assert.Equal(t, []byte("a"), <-s.Outbox())
	assert.Equal(t, []byte("b"), <-s.Outbox())
}
