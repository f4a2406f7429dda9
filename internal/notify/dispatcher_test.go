package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/dbayan/storefront/internal/notify"
	mock_notify "github.com/dbayan/storefront/internal/notify/mocks"
	"github.com/dbayan/storefront/internal/storage"
)

func testConfig() notify.DispatcherConfig {
	return notify.DispatcherConfig{
		Workers:     1,
		MaxAttempts: 3,
		RetryDelay:  10 * time.Millisecond,
		QueueSize:   8,
	}
}

func TestDispatcherDelivers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	notifier := mock_notify.NewMockNotifier(ctrl)
	delivered := make(chan notify.Message, 1)
	notifier.EXPECT().
		Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg notify.Message) error {
			delivered <- msg
			return nil
		})

	d := notify.NewDispatcher(notifier, testConfig(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()
	defer d.Shutdown()

	d.Enqueue(notify.Message{To: "a@b.com", Subject: "Your Order Confirmation", Body: "hi"})

	select {
	case msg := <-delivered:
		assert.Equal(t, "a@b.com", msg.To)
		assert.Equal(t, "Your Order Confirmation", msg.Subject)
	case <-time.After(2 * time.Second):
		t.Fatal("message was never delivered")
	}
}

func TestDispatcherRetriesTransientFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	notifier := mock_notify.NewMockNotifier(ctrl)
	delivered := make(chan struct{})
	gomock.InOrder(
		notifier.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("smtp timeout")),
		notifier.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
			func(context.Context, notify.Message) error {
				close(delivered)
				return nil
			}),
	)

	d := notify.NewDispatcher(notifier, testConfig(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()
	defer d.Shutdown()

	d.Enqueue(notify.Message{To: "a@b.com", Subject: "s", Body: "b"})

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("message was never retried to success")
	}
}

func TestDispatcherGivesUpAfterMaxAttempts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	notifier := mock_notify.NewMockNotifier(ctrl)
	attempts := make(chan struct{}, 8)
	notifier.EXPECT().
		Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, notify.Message) error {
			attempts <- struct{}{}
			return errors.New("mailbox unavailable")
		}).
		Times(3)

	d := notify.NewDispatcher(notifier, testConfig(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()
	defer d.Shutdown()

	d.Enqueue(notify.Message{To: "a@b.com", Subject: "s", Body: "b"})

	for i := 0; i < 3; i++ {
		select {
		case <-attempts:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected attempt %d", i+1)
		}
	}

	// No fourth attempt follows.
	select {
	case <-attempts:
		t.Fatal("dispatcher retried past MaxAttempts")
	case <-time.After(100 * time.Millisecond):
	}
}

func orderResultFixture() *storage.OrderResult {
	return &storage.OrderResult{
		Fulfilled: []storage.FulfilledLine{
			{ItemID: 1, Name: "Band-Aid", Quantity: 2, UnitPrice: 4.99, Subtotal: 9.98},
		},
		Rejected: []storage.RejectedLine{
			{ItemID: 2, Reason: "Heating Pad (requested 5, available 3)"},
		},
		Total: 9.98,
	}
}

func TestOrderMailBodies(t *testing.T) {
	result := orderResultFixture()

	buyer := notify.OrderConfirmation("a@b.com", result)
	assert.Equal(t, "a@b.com", buyer.To)
	assert.Contains(t, buyer.Body, "Band-Aid x 2 at $4.99 each")
	assert.Contains(t, buyer.Body, "Heating Pad (requested 5, available 3)")

	operator := notify.OrderNotice("ops@shop.com", "Alice", "a@b.com", result)
	assert.Equal(t, "ops@shop.com", operator.To)
	assert.Contains(t, operator.Subject, "Alice")
	assert.Contains(t, operator.Body, "Total price: $9.98")
	require.Contains(t, operator.Body, "a@b.com")
}
