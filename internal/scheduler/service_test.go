package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dairyops/dairyops/internal/customers"
)

type memorySchedulerRepo struct {
	customers     []customers.Customer
	charges       map[int64][]SubscriptionCharge
	vacations     map[int64][][2]time.Time
	deliveries    map[int64]*Delivery
	items         map[int64][]DeliveryItem
	failInsertFor map[int64]bool
	nextID        int64
	nextItemID    int64
}

func newMemorySchedulerRepo() *memorySchedulerRepo {
	return &memorySchedulerRepo{
		charges:       make(map[int64][]SubscriptionCharge),
		vacations:     make(map[int64][][2]time.Time),
		deliveries:    make(map[int64]*Delivery),
		items:         make(map[int64][]DeliveryItem),
		failInsertFor: make(map[int64]bool),
	}
}

func (r *memorySchedulerRepo) ListActiveCustomers(ctx context.Context) ([]customers.Customer, error) {
	var out []customers.Customer
	for _, c := range r.customers {
		if c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memorySchedulerRepo) ListActiveCharges(ctx context.Context, customerID int64) ([]SubscriptionCharge, error) {
	return r.charges[customerID], nil
}

func (r *memorySchedulerRepo) OnVacation(ctx context.Context, customerID int64, date time.Time) (bool, error) {
	for _, window := range r.vacations[customerID] {
		if !date.Before(window[0]) && !date.After(window[1]) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memorySchedulerRepo) DeliveryExists(ctx context.Context, customerID int64, date time.Time) (bool, error) {
	for _, d := range r.deliveries {
		if d.CustomerID == customerID && d.DeliveryDate.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memorySchedulerRepo) InsertDeliveryWithItems(ctx context.Context, d Delivery, items []DeliveryItem) (int64, error) {
	for _, existing := range r.deliveries {
		if existing.CustomerID == d.CustomerID && existing.DeliveryDate.Equal(d.DeliveryDate) {
			return 0, ErrDuplicateDelivery
		}
	}
	if r.failInsertFor[d.CustomerID] {
		// All-or-nothing, like the transactional insert: no delivery row
		// survives a failed item write.
		return 0, errors.New("simulated insert failure")
	}
	r.nextID++
	d.ID = r.nextID
	r.deliveries[d.ID] = &d
	for _, item := range items {
		item.DeliveryID = d.ID
		if err := r.InsertDeliveryItem(ctx, item); err != nil {
			return 0, err
		}
	}
	return d.ID, nil
}

func (r *memorySchedulerRepo) InsertDeliveryItem(ctx context.Context, item DeliveryItem) error {
	r.nextItemID++
	item.ID = r.nextItemID
	r.items[item.DeliveryID] = append(r.items[item.DeliveryID], item)
	return nil
}

func (r *memorySchedulerRepo) ListDeliveriesByDate(ctx context.Context, date time.Time, status DeliveryStatus) ([]Delivery, error) {
	var out []Delivery
	for _, d := range r.deliveries {
		if d.DeliveryDate.Equal(date) && (status == "" || d.Status == status) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *memorySchedulerRepo) ListDeliveryItems(ctx context.Context, deliveryID int64) ([]DeliveryItem, error) {
	return r.items[deliveryID], nil
}

func (r *memorySchedulerRepo) MarkDelivered(ctx context.Context, deliveryID int64, at time.Time) error {
	d, ok := r.deliveries[deliveryID]
	if !ok {
		return ErrNotFound
	}
	d.Status = StatusDelivered
	d.DeliveryTime = &at
	return nil
}

func (r *memorySchedulerRepo) deliveriesFor(customerID int64) []*Delivery {
	var out []*Delivery
	for _, d := range r.deliveries {
		if d.CustomerID == customerID {
			out = append(out, d)
		}
	}
	return out
}

func newTestService(repo *memorySchedulerRepo) *Service {
	svc := NewService(repo, nil, slog.Default())
	return svc.WithClock(func() time.Time {
		return time.Date(2024, 6, 10, 8, 30, 0, 0, time.UTC)
	})
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func price(v float64) *float64 { return &v }

func TestGenerateForDateCreatesDeliveryWithItems(t *testing.T) {
	repo := newMemorySchedulerRepo()
	repo.customers = []customers.Customer{
		{ID: 1, Active: true, SubscriptionType: customers.SubscriptionDaily},
	}
	repo.charges[1] = []SubscriptionCharge{
		{LineID: 10, CustomerID: 1, ProductID: 100, Quantity: 2, BasePrice: 30},
		{LineID: 11, CustomerID: 1, ProductID: 101, Quantity: 1, CustomPrice: price(45), BasePrice: 50},
	}

	svc := newTestService(repo)
	result, err := svc.GenerateForDate(context.Background(), date(2024, 6, 10), false)
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
	require.Empty(t, result.Errors)

	deliveries := repo.deliveriesFor(1)
	require.Len(t, deliveries, 1)
	require.Equal(t, StatusPending, deliveries[0].Status)
	require.Nil(t, deliveries[0].DeliveryTime)

	items := repo.items[deliveries[0].ID]
	require.Len(t, items, 2)
	require.Equal(t, 60.0, items[0].TotalAmount) // 2 x base 30
	require.Equal(t, 45.0, items[1].UnitPrice)   // custom price wins over base 50
	require.Equal(t, 45.0, items[1].TotalAmount)
}

func TestFailedInsertLeavesNoPartialDelivery(t *testing.T) {
	repo := newMemorySchedulerRepo()
	repo.customers = []customers.Customer{
		{ID: 1, Active: true, SubscriptionType: customers.SubscriptionDaily},
		{ID: 2, Active: true, SubscriptionType: customers.SubscriptionDaily},
	}
	repo.charges[1] = []SubscriptionCharge{{LineID: 10, CustomerID: 1, ProductID: 100, Quantity: 2, BasePrice: 30}}
	repo.charges[2] = []SubscriptionCharge{{LineID: 11, CustomerID: 2, ProductID: 100, Quantity: 1, BasePrice: 30}}
	repo.failInsertFor[1] = true

	svc := newTestService(repo)
	d := date(2024, 6, 10)
	result, err := svc.GenerateForDate(context.Background(), d, false)
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
	require.Len(t, result.Errors, 1)

	// The failed customer has no delivery row for the month aggregation to
	// misprice; a later run can still create it.
	require.Empty(t, repo.deliveriesFor(1))
	require.Len(t, repo.deliveriesFor(2), 1)

	repo.failInsertFor[1] = false
	result, err = svc.GenerateForDate(context.Background(), d, false)
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
	require.Len(t, repo.items[repo.deliveriesFor(1)[0].ID], 1)
}

func TestGenerateForDateIsIdempotent(t *testing.T) {
	repo := newMemorySchedulerRepo()
	repo.customers = []customers.Customer{
		{ID: 1, Active: true, SubscriptionType: customers.SubscriptionDaily},
	}
	repo.charges[1] = []SubscriptionCharge{{CustomerID: 1, ProductID: 100, Quantity: 1, BasePrice: 30}}

	svc := newTestService(repo)
	first, err := svc.GenerateForDate(context.Background(), date(2024, 6, 10), false)
	require.NoError(t, err)
	require.Equal(t, 1, first.Created)

	second, err := svc.GenerateForDate(context.Background(), date(2024, 6, 10), false)
	require.NoError(t, err)
	require.Equal(t, 0, second.Created)
	require.Equal(t, 1, second.SkippedDuplicate)
	require.Len(t, repo.deliveries, 1)
}

func TestAlternateCadenceFromEpoch(t *testing.T) {
	repo := newMemorySchedulerRepo()
	repo.customers = []customers.Customer{
		{ID: 1, Active: true, SubscriptionType: customers.SubscriptionAlternate},
	}
	repo.charges[1] = []SubscriptionCharge{{CustomerID: 1, ProductID: 100, Quantity: 1, BasePrice: 30}}

	svc := newTestService(repo)

	created := func(d time.Time) int {
		result, err := svc.GenerateForDate(context.Background(), d, false)
		require.NoError(t, err)
		return result.Created
	}

	require.Equal(t, 1, created(date(2024, 1, 1))) // epoch: offset 0, even
	require.Equal(t, 0, created(date(2024, 1, 2))) // offset 1, odd
	require.Equal(t, 1, created(date(2024, 1, 3))) // offset 2, even
}

func TestWeeklyDueOnlyOnSunday(t *testing.T) {
	c := customers.Customer{SubscriptionType: customers.SubscriptionWeekly}
	require.True(t, DueOn(c, date(2024, 6, 9)))   // Sunday
	require.False(t, DueOn(c, date(2024, 6, 10))) // Monday
}

func TestExplicitScheduleOverridesType(t *testing.T) {
	c := customers.Customer{
		SubscriptionType: customers.SubscriptionDaily,
		Schedule: &customers.DeliverySchedule{
			Days: map[string]bool{"monday": true, "thursday": true},
		},
	}
	require.True(t, DueOn(c, date(2024, 6, 10)))  // Monday
	require.False(t, DueOn(c, date(2024, 6, 11))) // Tuesday
	require.True(t, DueOn(c, date(2024, 6, 13)))  // Thursday
}

func TestCustomWithoutScheduleFailsOpen(t *testing.T) {
	c := customers.Customer{SubscriptionType: customers.SubscriptionCustom}
	require.True(t, DueOn(c, date(2024, 6, 11)))

	unknown := customers.Customer{SubscriptionType: "bimonthly"}
	require.True(t, DueOn(unknown, date(2024, 6, 11)))
}

func TestVacationSkipsOtherwiseDueCustomer(t *testing.T) {
	repo := newMemorySchedulerRepo()
	repo.customers = []customers.Customer{
		{ID: 1, Active: true, SubscriptionType: customers.SubscriptionDaily},
	}
	repo.charges[1] = []SubscriptionCharge{{CustomerID: 1, ProductID: 100, Quantity: 1, BasePrice: 30}}
	repo.vacations[1] = [][2]time.Time{{date(2024, 6, 8), date(2024, 6, 12)}}

	svc := newTestService(repo)
	result, err := svc.GenerateForDate(context.Background(), date(2024, 6, 10), false)
	require.NoError(t, err)
	require.Equal(t, 0, result.Created)
	require.Equal(t, 1, result.SkippedVacation)
}

func TestCustomerWithoutActiveLinesIsSkipped(t *testing.T) {
	repo := newMemorySchedulerRepo()
	repo.customers = []customers.Customer{
		{ID: 1, Active: true, SubscriptionType: customers.SubscriptionDaily},
	}

	svc := newTestService(repo)
	result, err := svc.GenerateForDate(context.Background(), date(2024, 6, 10), false)
	require.NoError(t, err)
	require.Equal(t, 0, result.Created)
	require.Equal(t, 1, result.SkippedNoLines)
}

func TestAutoMarkCreatesDeliveredWithTime(t *testing.T) {
	repo := newMemorySchedulerRepo()
	repo.customers = []customers.Customer{
		{ID: 1, Active: true, SubscriptionType: customers.SubscriptionDaily},
		{ID: 2, Active: true, SubscriptionType: customers.SubscriptionDaily,
			Schedule: &customers.DeliverySchedule{AutoDeliver: true}},
	}
	repo.charges[1] = []SubscriptionCharge{{CustomerID: 1, ProductID: 100, Quantity: 1, BasePrice: 30}}
	repo.charges[2] = []SubscriptionCharge{{CustomerID: 2, ProductID: 100, Quantity: 1, BasePrice: 30}}

	svc := newTestService(repo)
	_, err := svc.GenerateForDate(context.Background(), date(2024, 6, 10), false)
	require.NoError(t, err)

	// Customer 1 has no auto-deliver flag: pending.
	require.Equal(t, StatusPending, repo.deliveriesFor(1)[0].Status)

	// Customer 2 requested auto-delivery via schedule: delivered with time.
	d2 := repo.deliveriesFor(2)[0]
	require.Equal(t, StatusDelivered, d2.Status)
	require.NotNil(t, d2.DeliveryTime)
}

func TestCompletePendingBackfillsOnlyEmptyDeliveries(t *testing.T) {
	repo := newMemorySchedulerRepo()
	repo.charges[1] = []SubscriptionCharge{{CustomerID: 1, ProductID: 100, Quantity: 2, BasePrice: 30}}
	repo.charges[2] = []SubscriptionCharge{{CustomerID: 2, ProductID: 100, Quantity: 1, BasePrice: 30}}

	d := date(2024, 6, 10)
	id1, err := repo.InsertDeliveryWithItems(context.Background(), Delivery{CustomerID: 1, DeliveryDate: d, Status: StatusPending}, nil)
	require.NoError(t, err)
	id2, err := repo.InsertDeliveryWithItems(context.Background(), Delivery{CustomerID: 2, DeliveryDate: d, Status: StatusPending}, nil)
	require.NoError(t, err)
	// Delivery 2 already has an item; it must not be duplicated.
	require.NoError(t, repo.InsertDeliveryItem(context.Background(), DeliveryItem{DeliveryID: id2, ProductID: 100, Quantity: 1, UnitPrice: 30, TotalAmount: 30}))

	svc := newTestService(repo)
	result, err := svc.CompletePending(context.Background(), d)
	require.NoError(t, err)
	require.Equal(t, 2, result.Completed)

	require.Len(t, repo.items[id1], 1) // backfilled from subscription
	require.Equal(t, 60.0, repo.items[id1][0].TotalAmount)
	require.Len(t, repo.items[id2], 1) // unchanged

	for _, id := range []int64{id1, id2} {
		require.Equal(t, StatusDelivered, repo.deliveries[id].Status)
		require.NotNil(t, repo.deliveries[id].DeliveryTime)
	}
}

func TestGenerateRangeAppliesPerDayInOrder(t *testing.T) {
	repo := newMemorySchedulerRepo()
	repo.customers = []customers.Customer{
		{ID: 1, Active: true, SubscriptionType: customers.SubscriptionAlternate},
	}
	repo.charges[1] = []SubscriptionCharge{{CustomerID: 1, ProductID: 100, Quantity: 1, BasePrice: 30}}

	svc := newTestService(repo)
	result, err := svc.GenerateRange(context.Background(), date(2024, 1, 1), date(2024, 1, 4), false)
	require.NoError(t, err)
	require.Equal(t, 2, result.Created) // Jan 1 and Jan 3
	require.Equal(t, 2, result.SkippedNotDue)

	_, err = svc.GenerateRange(context.Background(), date(2024, 1, 4), date(2024, 1, 1), false)
	require.ErrorIs(t, err, ErrInvalidRange)
}
