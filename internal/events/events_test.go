package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ms-resale/internal/config"
	"ms-resale/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, value []byte) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

var topics = config.TopicConfig{
	TransactionEvents: "txn",
	DisputeEvents:     "disputes",
	ListingEvents:     "listings",
}

func TestEmitRoutesByType(t *testing.T) {
	cases := map[string]string{
		TransactionCompleted: "txn",
		DisputeResolved:      "disputes",
		ListingCancelled:     "listings",
	}
	for eventType, topic := range cases {
		pub := new(MockPublisher)
		pub.On("Publish", mock.Anything, topic, "txn-1", mock.Anything).Return(nil).Once()

		e := NewEmitter(pub, topics, nil)
		e.Emit(context.Background(), models.LifecycleEvent{Type: eventType, TransactionID: "txn-1"})

		pub.AssertExpectations(t)
	}
}

func TestEmitStampsAndEncodes(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	pub := new(MockPublisher)

	var body []byte
	pub.On("Publish", mock.Anything, "listings", "ticket-9", mock.Anything).
		Run(func(args mock.Arguments) { body = args.Get(3).([]byte) }).
		Return(nil)

	e := NewEmitter(pub, topics, nil)
	e.Now = func() time.Time { return now }
	e.Emit(context.Background(), models.LifecycleEvent{Type: ListingCreated, TicketID: "ticket-9"})

	var got models.LifecycleEvent
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, ListingCreated, got.Type)
	assert.True(t, now.Equal(got.Timestamp))
}

func TestEmitSwallowsPublishErrors(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	e := NewEmitter(pub, topics, nil)
	assert.NotPanics(t, func() {
		e.Emit(context.Background(), models.LifecycleEvent{Type: SellerConfirmed, TransactionID: "t"})
	})
	pub.AssertNumberOfCalls(t, "Publish", 1)
}

func TestNilEmitter(t *testing.T) {
	var e *Emitter
	assert.NotPanics(t, func() { e.Emit(context.Background(), models.LifecycleEvent{}) })
}
