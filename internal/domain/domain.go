package domain

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// User is a registered bot user. TelegramID stays zero until the user runs
// /start and the account is bound to a live Telegram identity.
type User struct {
	ID               int64          `db:"id"`
	TelegramID       int64          `db:"telegram_id"`
	TelegramUsername string         `db:"telegram_username"`
	Firstname        string         `db:"firstname"`
	Lastname         string         `db:"lastname"`
	RoleID           int64          `db:"role_id"`
	CompanyID        int64          `db:"company_id"`
	ModelID          *int64         `db:"model_id"`
	PermsAdd         pq.StringArray `db:"perms_add"`
	PermsRemove      pq.StringArray `db:"perms_remove"`
	TermsAccepted    bool           `db:"terms_accepted"`
	IsActive         bool           `db:"is_active"`
	CreatedAt        time.Time      `db:"created_at"`
	LastActivity     *time.Time     `db:"last_activity"`
}

// HasName reports whether the user completed the name step of onboarding.
func (u User) HasName() bool {
	return u.Firstname != "" && u.Lastname != ""
}

// Role carries a base permission set shared by its users.
type Role struct {
	ID          int64          `db:"id"`
	Name        string         `db:"name"`
	Permissions pq.StringArray `db:"permissions"`
}

// AdminRole is the role whose members may manage other users.
const AdminRole = "admin"

// Company groups users and owns exactly one wallet.
type Company struct {
	ID      int64  `db:"id"`
	Name    string `db:"name"`
	Address string `db:"address"`
}

// Wallet holds a company balance. The balance is never negative: every debit
// is conditioned on sufficient funds at the storage layer.
type Wallet struct {
	ID        int64           `db:"id"`
	CompanyID int64           `db:"company_id"`
	Balance   decimal.Decimal `db:"balance"`
	Currency  string          `db:"currency"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// TxType classifies a ledger entry.
type TxType string

const (
	TxIncome  TxType = "income"
	TxExpense TxType = "expense"
)

// TxStatus is the lifecycle state of a transaction.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxCompleted TxStatus = "completed"
	TxFailed    TxStatus = "failed"
)

// CanTransition reports whether a status change is allowed. Transitions are
// monotonic: pending may complete or fail, terminal states never move.
func (s TxStatus) CanTransition(to TxStatus) bool {
	return s == TxPending && (to == TxCompleted || to == TxFailed)
}

// Terminal reports whether the status admits no further transitions.
func (s TxStatus) Terminal() bool {
	return s == TxCompleted || s == TxFailed
}

// Transaction is an append-only ledger entry for a wallet.
type Transaction struct {
	ID                int64           `db:"id"`
	WalletID          int64           `db:"wallet_id"`
	Amount            decimal.Decimal `db:"amount"`
	Type              TxType          `db:"type"`
	Description       string          `db:"description"`
	ProviderPaymentID *string         `db:"provider_payment_id"`
	Status            TxStatus        `db:"status"`
	CreatedAt         time.Time       `db:"created_at"`
}

// Request is an immutable audit record of one AI invocation. It is created in
// the same transaction as the wallet debit that paid for it.
type Request struct {
	ID               int64           `db:"id"`
	Model            string          `db:"model"`
	UserID           int64           `db:"user_id"`
	CompanyID        int64           `db:"company_id"`
	InputMessage     string          `db:"input_message"`
	OutputMessage    string          `db:"output_message"`
	PromptTokens     int64           `db:"prompt_tokens"`
	CompletionTokens int64           `db:"completion_tokens"`
	TotalTokens      int64           `db:"total_tokens"`
	Price            decimal.Decimal `db:"price"`
	CreatedAt        time.Time       `db:"created_at"`
}

// Model describes an assignable AI model with its token pricing.
type Model struct {
	ID          int64           `db:"id"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Emoji       string          `db:"emoji"`
	InputPrice  decimal.Decimal `db:"input_price"`
	OutputPrice decimal.Decimal `db:"output_price"`
}

// Cost computes the price of a completed chat call in fixed-point decimal
// arithmetic: promptTokens*inputPrice + completionTokens*outputPrice.
func (m Model) Cost(promptTokens, completionTokens int64) decimal.Decimal {
	in := m.InputPrice.Mul(decimal.NewFromInt(promptTokens))
	out := m.OutputPrice.Mul(decimal.NewFromInt(completionTokens))
	return in.Add(out)
}
