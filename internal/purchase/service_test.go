package purchase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ms-boxoffice/internal/analytics"
	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/cache"
	"ms-boxoffice/internal/database/migrations"
	"ms-boxoffice/internal/inventory"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/purchase"
	purchasedb "ms-boxoffice/internal/purchase/db"
	"ms-boxoffice/internal/testutil"
	ticketdb "ms-boxoffice/internal/tickets/db"
	tickets "ms-boxoffice/internal/tickets/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type recordingPublisher struct {
	mu        sync.Mutex
	purchases []models.PurchaseEvent
	err       error
}

func (p *recordingPublisher) PublishPurchaseCreated(_ context.Context, e models.PurchaseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.purchases = append(p.purchases, e)
	return p.err
}

func (p *recordingPublisher) PublishPaymentVerified(context.Context, models.PaymentEvent) error {
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// failingDB records nothing, simulating the store going away after the reservation.
type failingDB struct {
	*purchasedb.DB
}

func (f failingDB) CreatePurchase(context.Context, *models.Purchase) error {
	return errors.New("connection reset by peer")
}

type fixture struct {
	db        *bun.DB
	store     *cache.MemoryStore
	publisher *recordingPublisher
	svc       *purchase.Service
	tickets   *tickets.TicketService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, testutil.NewTestDB(t))
}

func newFixtureOn(t *testing.T, db *bun.DB) *fixture {
	t.Helper()
	store := cache.NewMemoryStore()
	pub := &recordingPublisher{}
	log := logger.NewNop()
	return &fixture{
		db:        db,
		store:     store,
		publisher: pub,
		svc:       purchase.NewService(inventory.NewLedger(db), &purchasedb.DB{Bun: db}, store, pub, log, cache.ListingTTL),
		tickets:   tickets.NewTicketService(&ticketdb.DB{Bun: db}, store, log, cache.ListingTTL),
	}
}

var buyer = models.Principal{ID: "user-1", Role: models.RoleUser}

func available(t *testing.T, db *bun.DB, ticketID string) int {
	t.Helper()
	ticket, err := inventory.NewLedger(db).GetTicket(context.Background(), ticketID)
	require.NoError(t, err)
	return ticket.AvailableQuantity
}

func TestPurchase_CommitsAndPricesAtReservation(t *testing.T) {
	f := newFixture(t)
	ticket := testutil.SeedTicket(t, f.db, "event-1", "GA", 100, 5)

	p, err := f.svc.Purchase(context.Background(), buyer, ticket.ID, models.PurchaseRequest{TicketType: "GA", TicketsQuantity: 2})
	require.NoError(t, err)

	assert.Equal(t, 200.0, p.TotalPrice)
	assert.Equal(t, 100.0, p.UnitPrice)
	assert.Equal(t, "event-1", p.EventID)
	assert.Equal(t, models.PaymentPending, p.PaymentStatus)
	assert.Equal(t, 3, available(t, f.db, ticket.ID))

	require.Len(t, f.publisher.purchases, 1)
	assert.Equal(t, p.ID, f.publisher.purchases[0].PurchaseID)
}

func TestPurchase_LaterPriceEditKeepsRecordedTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := testutil.SeedTicket(t, f.db, "event-1", "GA", 100, 5)

	p, err := f.svc.Purchase(ctx, buyer, ticket.ID, models.PurchaseRequest{TicketsQuantity: 2})
	require.NoError(t, err)

	organizer := models.Principal{ID: ticket.OrganizerID, Role: models.RoleAdmin}
	price := 500.0
	_, err = f.tickets.UpdateTicket(ctx, organizer, ticket.ID, models.UpdateTicketRequest{UnitPrice: &price})
	require.NoError(t, err)

	stored, err := f.svc.GetPurchase(ctx, buyer, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 200.0, stored.TotalPrice)
}

func TestPurchase_ListingNotStaleAfterCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := testutil.SeedTicket(t, f.db, "event-1", "GA", 10, 5)

	before, err := f.tickets.ListTicketsByEvent(ctx, "event-1")
	require.NoError(t, err)
	require.Equal(t, 5, before[0].AvailableQuantity)
	_, err = f.tickets.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	_, err = f.svc.ListPurchases(ctx, buyer)
	require.NoError(t, err)

	_, err = f.svc.Purchase(ctx, buyer, ticket.ID, models.PurchaseRequest{TicketsQuantity: 3})
	require.NoError(t, err)

	after, err := f.tickets.ListTicketsByEvent(ctx, "event-1")
	require.NoError(t, err)
	assert.Equal(t, 2, after[0].AvailableQuantity)

	single, err := f.tickets.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, single.AvailableQuantity)

	mine, err := f.svc.ListPurchases(ctx, buyer)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

// purchaseInParallel starts every purchase at once and returns the committed ones.
func purchaseInParallel(t *testing.T, f *fixture, ticketID string, quantities []int) []*models.Purchase {
	t.Helper()

	start := make(chan struct{})
	var wg sync.WaitGroup
	var mu sync.Mutex
	var committed []*models.Purchase

	for i, qty := range quantities {
		wg.Add(1)
		go func(i, qty int) {
			defer wg.Done()
			<-start
			user := models.Principal{ID: fmt.Sprintf("user-%d", i), Role: models.RoleUser}
			p, err := f.svc.Purchase(context.Background(), user, ticketID, models.PurchaseRequest{TicketsQuantity: qty})
			if err != nil {
				assert.ErrorIs(t, err, apperr.ErrInsufficientInventory)
				return
			}
			mu.Lock()
			committed = append(committed, p)
			mu.Unlock()
		}(i, qty)
	}
	close(start)
	wg.Wait()
	return committed
}

func TestPurchase_ConcurrentRequestsNeverOversell(t *testing.T) {
	f := newFixture(t)
	ticket := testutil.SeedTicket(t, f.db, "event-1", "GA", 10, 5)

	assert.Len(t, purchaseInParallel(t, f, ticket.ID, []int{3, 3}), 1)
	assert.Equal(t, 2, available(t, f.db, ticket.ID))
}

func TestPurchase_ParallelOnPostgres(t *testing.T) {
	db := testutil.StartPostgres(t)
	require.NoError(t, migrations.NewRunner(db, testutil.MigrationsDir(), logger.NewNop()).Up())
	f := newFixtureOn(t, db)
	ctx := context.Background()

	pair := testutil.SeedTicket(t, db, "event-1", "GA", 10, 5)
	assert.Len(t, purchaseInParallel(t, f, pair.ID, []int{3, 3}), 1)
	assert.Equal(t, 2, available(t, db, pair.ID))

	rush := testutil.SeedTicket(t, db, "event-1", "VIP", 50, 8)
	quantities := make([]int, 30)
	for i := range quantities {
		quantities[i] = 1
	}
	committed := purchaseInParallel(t, f, rush.ID, quantities)
	assert.Len(t, committed, 8)
	assert.Equal(t, 0, available(t, db, rush.ID))

	records, err := db.NewSelect().Model((*models.Purchase)(nil)).Where("ticket_id = ?", rush.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, records)
}

func TestPurchase_RecordingFailureReleasesInventory(t *testing.T) {
	f := newFixture(t)
	ticket := testutil.SeedTicket(t, f.db, "event-1", "GA", 10, 5)
	svc := purchase.NewService(inventory.NewLedger(f.db), failingDB{&purchasedb.DB{Bun: f.db}}, f.store, f.publisher, logger.NewNop(), cache.ListingTTL)

	_, err := svc.Purchase(context.Background(), buyer, ticket.ID, models.PurchaseRequest{TicketsQuantity: 4})
	assert.ErrorIs(t, err, apperr.ErrPersistenceFailure)

	status, msg := apperr.Resolve(err)
	assert.Equal(t, 500, status)
	assert.NotContains(t, msg, "connection reset")

	assert.Equal(t, 5, available(t, f.db, ticket.ID))
	assert.Empty(t, f.publisher.purchases)
}

func TestPurchase_PublishFailureDoesNotFailPurchase(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker unavailable")
	ticket := testutil.SeedTicket(t, f.db, "event-1", "GA", 10, 5)

	_, err := f.svc.Purchase(context.Background(), buyer, ticket.ID, models.PurchaseRequest{TicketsQuantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, available(t, f.db, ticket.ID))
}

func TestPurchase_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := testutil.SeedTicket(t, f.db, "event-1", "GA", 10, 2)

	tests := []struct {
		name      string
		principal models.Principal
		ticketID  string
		req       models.PurchaseRequest
		want      error
	}{
		{"anonymous", models.Principal{}, ticket.ID, models.PurchaseRequest{TicketsQuantity: 1}, apperr.ErrUnauthorized},
		{"zero quantity", buyer, ticket.ID, models.PurchaseRequest{TicketsQuantity: 0}, apperr.ErrInvalidInput},
		{"negative quantity", buyer, ticket.ID, models.PurchaseRequest{TicketsQuantity: -1}, apperr.ErrInvalidInput},
		{"type mismatch", buyer, ticket.ID, models.PurchaseRequest{TicketType: "VIP", TicketsQuantity: 1}, apperr.ErrInvalidInput},
		{"unknown ticket", buyer, "missing", models.PurchaseRequest{TicketsQuantity: 1}, apperr.ErrNotFound},
		{"too many", buyer, ticket.ID, models.PurchaseRequest{TicketsQuantity: 3}, apperr.ErrInsufficientInventory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Purchase(ctx, tt.principal, tt.ticketID, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, 2, available(t, f.db, ticket.ID))
}

func TestPurchaseByType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := testutil.SeedTicket(t, f.db, "event-1", "VIP", 250, 4)

	p, err := f.svc.PurchaseByType(ctx, buyer, "event-1", models.PurchaseRequest{TicketType: "VIP", TicketsQuantity: 2})
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, p.TicketID)
	assert.Equal(t, 500.0, p.TotalPrice)

	_, err = f.svc.PurchaseByType(ctx, buyer, "event-1", models.PurchaseRequest{TicketType: "GA", TicketsQuantity: 1})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.PurchaseByType(ctx, buyer, "event-1", models.PurchaseRequest{TicketsQuantity: 1})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestGetPurchase_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := testutil.SeedTicket(t, f.db, "event-1", "GA", 10, 5)

	p, err := f.svc.Purchase(ctx, buyer, ticket.ID, models.PurchaseRequest{TicketsQuantity: 1})
	require.NoError(t, err)

	_, err = f.svc.GetPurchase(ctx, models.Principal{ID: "user-2"}, p.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.GetPurchase(ctx, buyer, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMarkPaid_RefreshesCachedPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := testutil.SeedTicket(t, f.db, "event-1", "GA", 10, 5)

	p, err := f.svc.Purchase(ctx, buyer, ticket.ID, models.PurchaseRequest{TicketsQuantity: 1})
	require.NoError(t, err)
	_, err = f.svc.GetPurchase(ctx, buyer, p.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkPaid(ctx, p.ID, buyer.ID))

	got, err := f.svc.GetPurchase(ctx, buyer, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
}

func TestPurchase_SalesReportNotStaleAfterCommitOrPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := testutil.SeedTicket(t, f.db, "event-1", "GA", 10, 5)
	reports := analytics.NewService(analytics.NewDB(f.db), f.store, logger.NewNop(), time.Hour)
	organizer := models.Principal{ID: ticket.OrganizerID, Role: models.RoleAdmin}

	before, err := reports.GetEventAnalytics(ctx, organizer, "event-1")
	require.NoError(t, err)
	assert.Equal(t, 0, before.TotalTicketsSold)

	p, err := f.svc.Purchase(ctx, buyer, ticket.ID, models.PurchaseRequest{TicketsQuantity: 2})
	require.NoError(t, err)

	afterPurchase, err := reports.GetEventAnalytics(ctx, organizer, "event-1")
	require.NoError(t, err)
	assert.Equal(t, 2, afterPurchase.TotalTicketsSold)
	assert.Equal(t, 0.0, afterPurchase.PaidRevenue)

	require.NoError(t, f.svc.MarkPaid(ctx, p.ID, buyer.ID))

	afterPayment, err := reports.GetEventAnalytics(ctx, organizer, "event-1")
	require.NoError(t, err)
	assert.InDelta(t, 20.0, afterPayment.PaidRevenue, 0.001)
}
