package ledger

import (
	"context"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryLedgerRepo struct {
	entries  map[int64][]Entry
	invoices []InvoiceRef
	nextID   int64
	// staleInserts forces the first N inserts to fail with ErrStaleBalance,
	// simulating a concurrent writer.
	staleInserts int
}

func newMemoryLedgerRepo() *memoryLedgerRepo {
	return &memoryLedgerRepo{entries: make(map[int64][]Entry)}
}

func (r *memoryLedgerRepo) LatestEntry(ctx context.Context, customerID int64) (*Entry, error) {
	trail := r.entries[customerID]
	if len(trail) == 0 {
		return nil, nil
	}
	sorted := make([]Entry, len(trail))
	copy(sorted, trail)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].TransactionDate.Equal(sorted[j].TransactionDate) {
			return sorted[i].TransactionDate.After(sorted[j].TransactionDate)
		}
		return sorted[i].ID > sorted[j].ID
	})
	latest := sorted[0]
	return &latest, nil
}

func (r *memoryLedgerRepo) InsertEntry(ctx context.Context, e Entry, expectedPrevID int64) (*Entry, error) {
	if r.staleInserts > 0 {
		r.staleInserts--
		return nil, ErrStaleBalance
	}
	latest, _ := r.LatestEntry(ctx, e.CustomerID)
	var latestID int64
	if latest != nil {
		latestID = latest.ID
	}
	if latestID != expectedPrevID {
		return nil, ErrStaleBalance
	}
	r.nextID++
	e.ID = r.nextID
	e.CreatedAt = time.Now()
	r.entries[e.CustomerID] = append(r.entries[e.CustomerID], e)
	return &e, nil
}

func (r *memoryLedgerRepo) SumEntries(ctx context.Context, customerID int64) (float64, float64, error) {
	var debit, credit float64
	for _, e := range r.entries[customerID] {
		debit += e.DebitAmount
		credit += e.CreditAmount
	}
	return debit, credit, nil
}

func (r *memoryLedgerRepo) ListEntries(ctx context.Context, customerID int64) ([]Entry, error) {
	return r.entries[customerID], nil
}

func (r *memoryLedgerRepo) ListUnsyncedInvoices(ctx context.Context) ([]InvoiceRef, error) {
	var out []InvoiceRef
	for _, inv := range r.invoices {
		synced := false
		for _, e := range r.entries[inv.CustomerID] {
			if e.TransactionType == TypeInvoice && e.ReferenceID != nil && *e.ReferenceID == inv.ID {
				synced = true
				break
			}
		}
		if !synced {
			out = append(out, inv)
		}
	}
	return out, nil
}

func newTestLedger(repo *memoryLedgerRepo) *Service {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	return NewService(repo, slog.Default()).WithClock(func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	})
}

func TestRunningBalanceMatchesCalculatedBalance(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := newTestLedger(repo)
	ctx := context.Background()

	_, err := svc.LogDeliveryCharge(ctx, 1, 120, 11, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = svc.LogInvoice(ctx, 1, 380, 7, "INV-202406-001")
	require.NoError(t, err)
	_, err = svc.LogPayment(ctx, 1, 300, "upi")
	require.NoError(t, err)
	_, err = svc.LogAdvancePayment(ctx, 1, 50)
	require.NoError(t, err)

	summary, err := svc.CalculateBalance(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 500.0, summary.TotalDebit)
	require.Equal(t, 350.0, summary.TotalCredit)
	require.Equal(t, 150.0, summary.Balance)

	latest, err := repo.LatestEntry(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, summary.Balance, latest.RunningBalance)
}

func TestLogPaymentReducesBalanceByExactAmount(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := newTestLedger(repo)
	ctx := context.Background()

	_, err := svc.LogInvoice(ctx, 1, 500, 7, "INV-202406-001")
	require.NoError(t, err)
	before, err := repo.LatestEntry(ctx, 1)
	require.NoError(t, err)

	entry, err := svc.LogPayment(ctx, 1, 200, "cash")
	require.NoError(t, err)
	require.Equal(t, before.RunningBalance-200, entry.RunningBalance)
	require.Equal(t, 200.0, entry.CreditAmount)
	require.Equal(t, 0.0, entry.DebitAmount)
}

func TestCreateEntryRejectsAmbiguousAmounts(t *testing.T) {
	svc := newTestLedger(newMemoryLedgerRepo())
	ctx := context.Background()

	_, err := svc.CreateEntry(ctx, EntryInput{CustomerID: 1, TransactionType: TypePayment})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.CreateEntry(ctx, EntryInput{CustomerID: 1, TransactionType: TypePayment, Debit: 10, Credit: 10})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCreateEntryRetriesOnStaleBalance(t *testing.T) {
	repo := newMemoryLedgerRepo()
	repo.staleInserts = 2
	svc := newTestLedger(repo)

	entry, err := svc.CreateEntry(context.Background(), EntryInput{
		CustomerID:      1,
		TransactionType: TypePayment,
		Description:     "Payment received (upi)",
		Credit:          100,
	})
	require.NoError(t, err)
	require.Equal(t, -100.0, entry.RunningBalance)
}

func TestCreateEntryGivesUpAfterBoundedRetries(t *testing.T) {
	repo := newMemoryLedgerRepo()
	repo.staleInserts = balanceRetries + 1
	svc := newTestLedger(repo)

	_, err := svc.CreateEntry(context.Background(), EntryInput{
		CustomerID:      1,
		TransactionType: TypePayment,
		Credit:          100,
	})
	require.ErrorIs(t, err, ErrStaleBalance)
}

func TestSyncInvoicesBackfillsMissingEntries(t *testing.T) {
	repo := newMemoryLedgerRepo()
	repo.invoices = []InvoiceRef{
		{ID: 1, CustomerID: 1, Number: "INV-202406-001", FinalAmount: 500},
		{ID: 2, CustomerID: 2, Number: "INV-202406-002", FinalAmount: 750},
	}
	svc := newTestLedger(repo)
	ctx := context.Background()

	// Invoice 1 is already synced.
	_, err := svc.LogInvoice(ctx, 1, 500, 1, "INV-202406-001")
	require.NoError(t, err)

	result, err := svc.SyncInvoices(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
	require.Empty(t, result.Errors)

	// Re-running is a no-op once consistent.
	again, err := svc.SyncInvoices(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, again.Created)

	summary, err := svc.CalculateBalance(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 750.0, summary.Balance)
}
