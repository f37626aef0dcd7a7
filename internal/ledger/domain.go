package ledger

import "time"

// TransactionType enumerates ledger movement categories.
type TransactionType string

const (
	TypeDelivery TransactionType = "delivery"
	TypePayment  TransactionType = "payment"
	TypeInvoice  TransactionType = "invoice"
	TypeAdvance  TransactionType = "advance"
)

// Entry is one signed accounting movement for a customer. Entries are
// append-only: corrections are compensating entries, never edits.
type Entry struct {
	ID              int64           `json:"id"`
	CustomerID      int64           `json:"customer_id"`
	TransactionType TransactionType `json:"transaction_type"`
	Description     string          `json:"description"`
	DebitAmount     float64         `json:"debit_amount"`
	CreditAmount    float64         `json:"credit_amount"`
	RunningBalance  float64         `json:"running_balance"`
	ReferenceID     *int64          `json:"reference_id,omitempty"`
	TransactionDate time.Time       `json:"transaction_date"`
	CreatedAt       time.Time       `json:"created_at"`
}

// EntryInput describes a movement to append. Exactly one of Debit or Credit
// must be non-zero.
type EntryInput struct {
	CustomerID      int64
	TransactionType TransactionType
	Description     string
	Debit           float64
	Credit          float64
	ReferenceID     *int64
}

// BalanceSummary is derived independently by summing all of a customer's
// entries; it must agree with the latest entry's running balance.
type BalanceSummary struct {
	CustomerID  int64   `json:"customer_id"`
	TotalDebit  float64 `json:"total_debit"`
	TotalCredit float64 `json:"total_credit"`
	Balance     float64 `json:"balance"`
}

// InvoiceRef is an invoice missing its ledger entry, as seen by the sync
// reconciliation.
type InvoiceRef struct {
	ID          int64
	CustomerID  int64
	Number      string
	FinalAmount float64
}

// SyncResult summarises one invoice-to-ledger reconciliation pass.
type SyncResult struct {
	Created int      `json:"created"`
	Errors  []string `json:"errors,omitempty"`
}
