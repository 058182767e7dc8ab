package verification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"feedback_service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCode_Format(t *testing.T) {
	issued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i := 0; i < 500; i++ {
		c, err := NewCode(issued, time.Hour)
		require.NoError(t, err)

		require.Len(t, c.Value, CodeLength)
		n, err := strconv.Atoi(c.Value)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
		assert.NotEqual(t, byte('0'), c.Value[0])
		assert.Equal(t, issued.Add(time.Hour), c.ExpiresAt)
	}
}

type recordingPublisher struct {
	got []models.Notification
	err error
}

func (p *recordingPublisher) SendMessage(_ context.Context, msg models.Notification) error {
	p.got = append(p.got, msg)
	return p.err
}

func TestSendVerificationCode(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := &recordingPublisher{}

	err := SendVerificationCode(context.Background(), log, pub, "a@x.com", "alice", "123456")
	require.NoError(t, err)

	require.Len(t, pub.got, 1)
	assert.Equal(t, models.Notification{
		Email:    "a@x.com",
		Username: "alice",
		Code:     "123456",
		Purpose:  models.PurposeVerification,
	}, pub.got[0])
}

func TestSendVerificationCode_PublisherError(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := &recordingPublisher{err: errors.New("broker down")}

	err := SendVerificationCode(context.Background(), log, pub, "a@x.com", "alice", "123456")
	assert.EqualError(t, err, "broker down")
}
