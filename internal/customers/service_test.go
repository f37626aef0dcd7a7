package customers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryCustomerRepo struct {
	customers map[int64]*Customer
	lines     map[int64][]SubscriptionLine
	vacations map[int64][]Vacation
	nextID    int64
}

func newMemoryCustomerRepo() *memoryCustomerRepo {
	return &memoryCustomerRepo{
		customers: make(map[int64]*Customer),
		lines:     make(map[int64][]SubscriptionLine),
		vacations: make(map[int64][]Vacation),
	}
}

func (r *memoryCustomerRepo) CreateCustomer(ctx context.Context, c Customer) (*Customer, error) {
	r.nextID++
	c.ID = r.nextID
	r.customers[c.ID] = &c
	copied := c
	return &copied, nil
}

func (r *memoryCustomerRepo) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *memoryCustomerRepo) UpdateCustomer(ctx context.Context, id int64, updates map[string]interface{}) error {
	c, ok := r.customers[id]
	if !ok {
		return ErrNotFound
	}
	if v, ok := updates["name"]; ok {
		c.Name = v.(string)
	}
	if v, ok := updates["active"]; ok {
		c.Active = v.(bool)
	}
	if v, ok := updates["subscription_type"]; ok {
		c.SubscriptionType = SubscriptionType(v.(string))
	}
	if v, ok := updates["schedule"]; ok {
		c.Schedule = v.(*DeliverySchedule)
	}
	return nil
}

func (r *memoryCustomerRepo) ListCustomers(ctx context.Context, activeOnly bool) ([]Customer, error) {
	var out []Customer
	for id := int64(1); id <= r.nextID; id++ {
		c, ok := r.customers[id]
		if !ok {
			continue
		}
		if !activeOnly || c.Active {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memoryCustomerRepo) AddSubscriptionLine(ctx context.Context, line SubscriptionLine) (*SubscriptionLine, error) {
	r.nextID++
	line.ID = r.nextID
	r.lines[line.CustomerID] = append(r.lines[line.CustomerID], line)
	return &line, nil
}

func (r *memoryCustomerRepo) ListSubscriptionLines(ctx context.Context, customerID int64, activeOnly bool) ([]SubscriptionLine, error) {
	var out []SubscriptionLine
	for _, l := range r.lines[customerID] {
		if !activeOnly || l.Active {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memoryCustomerRepo) DeactivateSubscriptionLine(ctx context.Context, customerID, lineID int64) error {
	for i := range r.lines[customerID] {
		if r.lines[customerID][i].ID == lineID {
			r.lines[customerID][i].Active = false
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryCustomerRepo) AddVacation(ctx context.Context, v Vacation) (*Vacation, error) {
	r.nextID++
	v.ID = r.nextID
	r.vacations[v.CustomerID] = append(r.vacations[v.CustomerID], v)
	return &v, nil
}

func (r *memoryCustomerRepo) ListVacations(ctx context.Context, customerID int64) ([]Vacation, error) {
	return r.vacations[customerID], nil
}

func (r *memoryCustomerRepo) DeactivateVacation(ctx context.Context, customerID, vacationID int64) error {
	for i := range r.vacations[customerID] {
		if r.vacations[customerID][i].ID == vacationID {
			r.vacations[customerID][i].Active = false
			return nil
		}
	}
	return ErrNotFound
}

func TestCreateCustomerRejectsUnknownSubscriptionType(t *testing.T) {
	svc := NewService(newMemoryCustomerRepo())

	_, err := svc.CreateCustomer(context.Background(), CreateCustomerRequest{
		Name:             "Asha",
		Phone:            "9876543210",
		SubscriptionType: "bimonthly",
	})
	require.ErrorIs(t, err, ErrInvalidSubscriptionType)
}

func TestCreateCustomerCustomTypeRequiresSchedule(t *testing.T) {
	svc := NewService(newMemoryCustomerRepo())
	ctx := context.Background()

	_, err := svc.CreateCustomer(ctx, CreateCustomerRequest{
		Name:             "Asha",
		Phone:            "9876543210",
		SubscriptionType: SubscriptionCustom,
	})
	require.ErrorIs(t, err, ErrScheduleRequired)

	c, err := svc.CreateCustomer(ctx, CreateCustomerRequest{
		Name:             "Asha",
		Phone:            "9876543210",
		SubscriptionType: SubscriptionCustom,
		Schedule: &DeliverySchedule{
			Days: map[string]bool{"monday": true, "thursday": true},
		},
	})
	require.NoError(t, err)
	require.True(t, c.Active)
	require.True(t, c.Schedule.DueOn(time.Monday))
	require.False(t, c.Schedule.DueOn(time.Tuesday))
}

func TestAddSubscriptionRequiresPositiveQuantity(t *testing.T) {
	repo := newMemoryCustomerRepo()
	svc := NewService(repo)
	ctx := context.Background()

	c, err := svc.CreateCustomer(ctx, CreateCustomerRequest{
		Name:             "Asha",
		Phone:            "9876543210",
		SubscriptionType: SubscriptionDaily,
	})
	require.NoError(t, err)

	_, err = svc.AddSubscription(ctx, c.ID, AddSubscriptionRequest{ProductID: 1, Quantity: 0})
	require.Error(t, err)

	line, err := svc.AddSubscription(ctx, c.ID, AddSubscriptionRequest{ProductID: 1, Quantity: 1.5})
	require.NoError(t, err)
	require.True(t, line.Active)
	require.Equal(t, 1.5, line.Quantity)
}

func TestAddSubscriptionUnknownCustomer(t *testing.T) {
	svc := NewService(newMemoryCustomerRepo())

	_, err := svc.AddSubscription(context.Background(), 99, AddSubscriptionRequest{ProductID: 1, Quantity: 1})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAddVacationRejectsInvertedRange(t *testing.T) {
	repo := newMemoryCustomerRepo()
	svc := NewService(repo)
	ctx := context.Background()

	c, err := svc.CreateCustomer(ctx, CreateCustomerRequest{
		Name:             "Asha",
		Phone:            "9876543210",
		SubscriptionType: SubscriptionDaily,
	})
	require.NoError(t, err)

	start := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	_, err = svc.AddVacation(ctx, c.ID, AddVacationRequest{StartDate: start, EndDate: start.AddDate(0, 0, -1)})
	require.ErrorIs(t, err, ErrInvalidVacation)

	v, err := svc.AddVacation(ctx, c.ID, AddVacationRequest{StartDate: start, EndDate: start})
	require.NoError(t, err)
	require.True(t, v.Active)
}

func TestUpdateCustomerValidatesSubscriptionType(t *testing.T) {
	repo := newMemoryCustomerRepo()
	svc := NewService(repo)
	ctx := context.Background()

	c, err := svc.CreateCustomer(ctx, CreateCustomerRequest{
		Name:             "Asha",
		Phone:            "9876543210",
		SubscriptionType: SubscriptionDaily,
	})
	require.NoError(t, err)

	bad := SubscriptionType("fortnightly")
	err = svc.UpdateCustomer(ctx, c.ID, UpdateCustomerRequest{SubscriptionType: &bad})
	require.ErrorIs(t, err, ErrInvalidSubscriptionType)

	weekly := SubscriptionWeekly
	require.NoError(t, svc.UpdateCustomer(ctx, c.ID, UpdateCustomerRequest{SubscriptionType: &weekly}))
	updated, err := svc.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, SubscriptionWeekly, updated.SubscriptionType)
}
