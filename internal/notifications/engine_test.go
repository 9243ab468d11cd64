package notifications_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"api_backoffice/internal/inventory"
	"api_backoffice/internal/notifications"
	"api_backoffice/internal/sales"
	"api_backoffice/internal/storage/memory"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []*notifications.Notification
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, n *notifications.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, n)
	return p.err
}

// flakyStorage fails the first failures inserts.
type flakyStorage struct {
	*memory.NotificationStorage
	mu       sync.Mutex
	failures int
	attempts int
}

func (s *flakyStorage) Create(ctx context.Context, n *notifications.Notification) error {
	s.mu.Lock()
	s.attempts++
	fail := s.attempts <= s.failures
	s.mu.Unlock()
	if fail {
		return errors.New("connection reset")
	}
	return s.NotificationStorage.Create(ctx, n)
}

func record(name string, qty, inStock int) sales.Recorded {
	return sales.Recorded{
		AdminID: "1",
		Sale: &sales.Sale{
			ID:          "sale-" + name,
			ProductName: name,
			Quantity:    qty,
			TotalAmount: decimal.RequireFromString("25.5").Mul(decimal.NewFromInt(int64(qty))),
		},
		Product: &inventory.Product{ID: "p-" + name, Name: name, InStock: inStock, Status: inventory.StatusFor(inStock)},
	}
}

func TestStockAlert(t *testing.T) {
	cases := []struct {
		inStock int
		ok      bool
		title   string
		message string
	}{
		{11, false, "", ""},
		{10, true, "Low Stock Alert", "Fan stock is low (10 left)."},
		{1, true, "Low Stock Alert", "Fan stock is low (1 left)."},
		{0, true, "Out of Stock Alert", "Fan is out of stock."},
	}
	for _, tc := range cases {
		p := &inventory.Product{Name: "Fan", InStock: tc.inStock}
		title, message, ok := notifications.StockAlert(p)
		assert.Equal(t, tc.ok, ok, "inStock=%d", tc.inStock)
		assert.Equal(t, tc.title, title)
		assert.Equal(t, tc.message, message)

		again, againMsg, _ := notifications.StockAlert(p)
		assert.Equal(t, title, again, "same inStock, same content")
		assert.Equal(t, message, againMsg)
	}
}

func TestSaleNotice(t *testing.T) {
	title, message := notifications.SaleNotice(&sales.Sale{Quantity: 3, ProductName: "SSD", TotalAmount: decimal.RequireFromString("120")})

	assert.Equal(t, "New Sale Recorded", title)
	assert.Equal(t, "3 x SSD sold for 120.00.", message)
}

func TestEvaluate_StoresThenPublishes(t *testing.T) {
	store := memory.NewNotificationStorage()
	pub := &recordingPublisher{}
	now := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	engine := notifications.NewEngine(store, pub, zaptest.NewLogger(t), notifications.WithEngineClock(func() time.Time { return now }))

	created, err := engine.Evaluate(context.Background(), record("Fan", 5, 10))

	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, notifications.TypeSale, created[0].Type)
	assert.Equal(t, "sale-Fan", created[0].ReferenceID)
	assert.Equal(t, notifications.TypeStock, created[1].Type)
	assert.Equal(t, "p-Fan", created[1].ReferenceID)
	for _, n := range created {
		assert.NotEmpty(t, n.ID)
		assert.Equal(t, now, n.CreatedAt)
		assert.False(t, n.IsRead)
	}
	assert.Equal(t, created, pub.published)

	stored, err := store.ListByAdmin(context.Background(), "1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestEvaluate_HealthyStockOnlyNotifiesSale(t *testing.T) {
	engine := notifications.NewEngine(memory.NewNotificationStorage(), nil, zaptest.NewLogger(t))

	created, err := engine.Evaluate(context.Background(), record("Fan", 1, 30))

	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, notifications.TypeSale, created[0].Type)
}

func TestEvaluate_DeliveryFailureIsContained(t *testing.T) {
	store := memory.NewNotificationStorage()
	engine := notifications.NewEngine(store, &recordingPublisher{err: errors.New("socket gone")}, zaptest.NewLogger(t))

	created, err := engine.Evaluate(context.Background(), record("Fan", 1, 3))

	require.NoError(t, err)
	assert.Len(t, created, 2)
	unread, err := store.CountUnread(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread, "rows stay visible for the next poll")
}

func TestEvaluate_RetriesTransientInsertFailures(t *testing.T) {
	store := &flakyStorage{NotificationStorage: memory.NewNotificationStorage(), failures: 2}
	engine := notifications.NewEngine(store, nil, zaptest.NewLogger(t), notifications.WithRetries(3, time.Millisecond))

	created, err := engine.Evaluate(context.Background(), record("Fan", 1, 30))

	require.NoError(t, err)
	assert.Len(t, created, 1)
	assert.Equal(t, 3, store.attempts)
}

func TestEvaluate_GivesUpAfterRetries(t *testing.T) {
	store := &flakyStorage{NotificationStorage: memory.NewNotificationStorage(), failures: 100}
	pub := &recordingPublisher{}
	engine := notifications.NewEngine(store, pub, zaptest.NewLogger(t), notifications.WithRetries(2, time.Millisecond))

	created, err := engine.Evaluate(context.Background(), record("Fan", 1, 30))

	assert.Error(t, err)
	assert.Empty(t, created)
	assert.Empty(t, pub.published)
	assert.Equal(t, 3, store.attempts)
}

func TestEvaluate_RequiresAdmin(t *testing.T) {
	engine := notifications.NewEngine(memory.NewNotificationStorage(), nil, zaptest.NewLogger(t))
	rec := record("Fan", 1, 3)
	rec.AdminID = ""

	_, err := engine.Evaluate(context.Background(), rec)

	assert.ErrorIs(t, err, notifications.ErrMissingAdmin)
}

func TestEvaluate_PublishOrderMatchesCreationOrder(t *testing.T) {
	pub := &recordingPublisher{}
	engine := notifications.NewEngine(memory.NewNotificationStorage(), pub, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine.SaleRecorded(context.Background(), record("Fan", 1, 5))
		}()
	}
	wg.Wait()

	require.Len(t, pub.published, 40)
	for i := 0; i < len(pub.published); i += 2 {
		// each evaluation publishes its pair without another one in between
		assert.Equal(t, notifications.TypeSale, pub.published[i].Type)
		assert.Equal(t, notifications.TypeStock, pub.published[i+1].Type)
	}
}
