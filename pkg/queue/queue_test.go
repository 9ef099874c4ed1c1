package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bvp/pkg/logger"
)

type forecastArgs struct {
	Horizon string `json:"horizon"`
	AssetID int64  `json:"asset_id"`
}

type noopJob struct{}

func (noopJob) Name() string                                { return "noop" }
func (noopJob) Type() string                                { return "forecasting" }
func (noopJob) Handle(context.Context, json.RawMessage) error { return nil }

func TestDecode(t *testing.T) {
	args, err := Decode[forecastArgs](json.RawMessage(`{"horizon":"PT48H","asset_id":4}`))
	require.NoError(t, err)
	assert.Equal(t, forecastArgs{Horizon: "PT48H", AssetID: 4}, *args)

	_, err = Decode[forecastArgs](nil)
	assert.Error(t, err)

	_, err = Decode[forecastArgs](json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestNewMessageCarriesPayload(t *testing.T) {
	msg, err := newMessage("forecasting", forecastArgs{Horizon: "PT24H", AssetID: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "forecasting", msg.Type)
	assert.JSONEq(t, `{"horizon":"PT24H","asset_id":3}`, string(msg.Payload))

	back, err := Decode[forecastArgs](msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, int64(3), back.AssetID)
}

func TestQueueKeys(t *testing.T) {
	q := NewRedisPublisher(logger.Nop(), nil, WithQueueName("forecasting"))
	assert.Equal(t, "bvp:queue:forecasting:messages", q.queueKey())
	assert.Equal(t, "bvp:queue:forecasting:retry", q.retryKey())
	assert.Equal(t, "bvp:queue:forecasting:dlq", q.deadLetterKey())

	plain := NewRedisPublisher(logger.Nop(), nil, WithKeyPrefix("x"))
	assert.Equal(t, "x:messages", plain.queueKey())
}

func TestRetryBackoffGrowsWithAttempts(t *testing.T) {
	cfg := Config{RetryDelay: 30 * time.Second}.withDefaults()
	now := time.Date(2018, 6, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(30*time.Second), cfg.retryAt(now, 1))
	assert.Equal(t, now.Add(90*time.Second), cfg.retryAt(now, 3))

	defaults := Config{}.withDefaults()
	assert.Equal(t, 1, defaults.Workers)
	assert.Equal(t, time.Second, defaults.PollTimeout)
}

func TestPublishRejections(t *testing.T) {
	consumer := NewRedisConsumer(logger.Nop(), Config{}, nil, []Job{noopJob{}})
	err := consumer.PublishMessage(context.Background(), "cleanup", nil)
	assert.True(t, errors.Is(err, ErrUnknownJob))

	pub := NewRedisPublisher(logger.Nop(), nil)
	require.NoError(t, pub.Stop(context.Background()))
	err = pub.PublishMessage(context.Background(), "forecasting", forecastArgs{})
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.ErrorIs(t, pub.Start(), ErrQueueClosed)
}

func TestPermanent(t *testing.T) {
	base := errors.New("bad payload")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
	assert.Nil(t, Permanent(nil))
}
