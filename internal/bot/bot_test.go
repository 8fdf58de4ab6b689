package bot

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"

	"github.com/flx-it/assistbot/internal/ai"
	"github.com/flx-it/assistbot/internal/domain"
	"github.com/flx-it/assistbot/internal/permissions"
	"github.com/flx-it/assistbot/internal/session"
	"github.com/flx-it/assistbot/internal/storage"
)

// fakeContext implements the slice of tele.Context the handlers touch.
// Unimplemented methods panic through the embedded nil interface.
type fakeContext struct {
	tele.Context
	values map[string]interface{}
	sender *tele.User
	text   string
	sent   []string
}

func newFakeContext(telegramID int64, text string) *fakeContext {
	return &fakeContext{
		values: map[string]interface{}{},
		sender: &tele.User{ID: telegramID, Username: "someone"},
		text:   text,
	}
}

func (c *fakeContext) Update() tele.Update { return tele.Update{ID: 1} }
func (c *fakeContext) Sender() *tele.User  { return c.sender }
func (c *fakeContext) Chat() *tele.Chat    { return &tele.Chat{ID: c.sender.ID} }
func (c *fakeContext) Text() string        { return c.text }

func (c *fakeContext) Get(key string) interface{} { return c.values[key] }
func (c *fakeContext) Set(key string, v interface{}) {
	c.values[key] = v
}

func (c *fakeContext) Send(what interface{}, _ ...interface{}) error {
	if s, ok := what.(string); ok {
		c.sent = append(c.sent, s)
	}
	return nil
}

func (c *fakeContext) sentContains(text string) bool {
	for _, s := range c.sent {
		if s == text {
			return true
		}
	}
	return false
}

type fakeStore struct {
	role    domain.Role
	wallet  domain.Wallet
	deleted []string
}

func (f *fakeStore) UserByTelegramID(ctx context.Context, telegramID int64) (domain.User, error) {
	return domain.User{}, storage.ErrNotFound
}

func (f *fakeStore) UserByUsername(ctx context.Context, username string) (domain.User, error) {
	return domain.User{}, storage.ErrNotFound
}

func (f *fakeStore) UserByID(ctx context.Context, id int64) (domain.User, error) {
	return domain.User{}, storage.ErrNotFound
}

func (f *fakeStore) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	return u, nil
}

func (f *fakeStore) BindTelegramID(ctx context.Context, userID, telegramID int64) error { return nil }

func (f *fakeStore) SetUserName(ctx context.Context, userID int64, firstname, lastname string) error {
	return nil
}

func (f *fakeStore) SetTermsAccepted(ctx context.Context, userID int64) error      { return nil }
func (f *fakeStore) SetUserModel(ctx context.Context, userID, modelID int64) error { return nil }

func (f *fakeStore) TouchUserActivity(ctx context.Context, userID int64, at time.Time) error {
	return nil
}

func (f *fakeStore) DeleteUser(ctx context.Context, username string) error {
	f.deleted = append(f.deleted, username)
	return nil
}

func (f *fakeStore) ListUsersByCompany(ctx context.Context, companyID int64, offset, limit int) ([]domain.User, int, error) {
	return nil, 0, nil
}

func (f *fakeStore) AddPermission(ctx context.Context, userID int64, capability string) error {
	return nil
}

func (f *fakeStore) RemovePermission(ctx context.Context, userID int64, capability string) error {
	return nil
}

func (f *fakeStore) RoleByName(ctx context.Context, name string) (domain.Role, error) {
	return f.role, nil
}

func (f *fakeStore) RoleByID(ctx context.Context, id int64) (domain.Role, error) {
	return f.role, nil
}

func (f *fakeStore) CompanyByName(ctx context.Context, name string) (domain.Company, error) {
	return domain.Company{}, storage.ErrNotFound
}

func (f *fakeStore) CompanyByID(ctx context.Context, id int64) (domain.Company, error) {
	return domain.Company{ID: id, Name: "Acme"}, nil
}

func (f *fakeStore) ModelByID(ctx context.Context, id int64) (domain.Model, error) {
	return domain.Model{}, storage.ErrNotFound
}

func (f *fakeStore) ListModels(ctx context.Context) ([]domain.Model, error) { return nil, nil }

func (f *fakeStore) WalletByCompany(ctx context.Context, companyID int64) (domain.Wallet, error) {
	if f.wallet.ID == 0 {
		return domain.Wallet{}, storage.ErrNotFound
	}
	return f.wallet, nil
}

func (f *fakeStore) ChargeAndRecord(ctx context.Context, walletID int64, rec domain.Request) (domain.Wallet, error) {
	return f.wallet, nil
}

func (f *fakeStore) Close() error { return nil }

func newTestApp(perms ...string) (*App, *fakeStore) {
	fs := &fakeStore{
		role: domain.Role{ID: 1, Name: domain.AdminRole, Permissions: perms},
		wallet: domain.Wallet{
			ID:        1,
			CompanyID: 1,
			Balance:   decimal.NewFromInt(42),
			Currency:  "RUB",
		},
	}
	return &App{store: fs, sessions: session.NewMemoryStore()}, fs
}

func testAdmin() domain.User {
	return domain.User{
		ID:            7,
		TelegramID:    700,
		RoleID:        1,
		CompanyID:     1,
		Firstname:     "Ada",
		Lastname:      "Admin",
		TermsAccepted: true,
	}
}

func adminContext(user domain.User, text string) *fakeContext {
	c := newFakeContext(user.TelegramID, text)
	c.Set(userContextKey, user)
	return c
}

func TestNewCommandDropsPendingOperation(t *testing.T) {
	app, _ := newTestApp(permissions.New)
	user := testAdmin()
	ctx := context.Background()

	app.sessions.Push(ctx, user.TelegramID, session.Operation{Kind: session.OpDelete})

	if err := app.cmdNew(adminContext(user, "/new")); err != nil {
		t.Fatalf("cmdNew: %v", err)
	}
	if app.sessions.InProgress(user.TelegramID) {
		t.Fatal("pending operation survived /new")
	}
	if _, ok := app.sessions.Peek(ctx, user.TelegramID); ok {
		t.Fatal("peek returned an operation after /new")
	}
}

func TestTextAfterNewDoesNotDeleteUser(t *testing.T) {
	app, fs := newTestApp(permissions.Delete, permissions.New)
	user := testAdmin()

	if err := app.cmdDelete(adminContext(user, "/delete")); err != nil {
		t.Fatalf("cmdDelete: %v", err)
	}
	if err := app.cmdNew(adminContext(user, "/new")); err != nil {
		t.Fatalf("cmdNew: %v", err)
	}

	c := adminContext(user, "@victim")
	if err := app.ManagerHandler(c); err != nil {
		t.Fatalf("ManagerHandler: %v", err)
	}
	if len(fs.deleted) != 0 {
		t.Fatalf("text after /new deleted users: %v", fs.deleted)
	}
}

func TestDeleteOperationConsumedOnce(t *testing.T) {
	app, fs := newTestApp(permissions.Delete)
	user := testAdmin()

	prompt := adminContext(user, "/delete")
	if err := app.cmdDelete(prompt); err != nil {
		t.Fatalf("cmdDelete: %v", err)
	}
	if !prompt.sentContains(txtDeletePrompt) {
		t.Fatalf("missing delete prompt, sent: %v", prompt.sent)
	}

	c := adminContext(user, "@victim")
	if err := app.ManagerHandler(c); err != nil {
		t.Fatalf("ManagerHandler: %v", err)
	}
	if len(fs.deleted) != 1 || fs.deleted[0] != "victim" {
		t.Fatalf("deleted = %v, want [victim]", fs.deleted)
	}
	if !c.sentContains(txtDeleteDone) {
		t.Fatalf("missing confirmation, sent: %v", c.sent)
	}
	if app.sessions.InProgress(user.TelegramID) {
		t.Fatal("operation still pending after completion")
	}
}

func TestCommandSupersedesPendingOperation(t *testing.T) {
	app, _ := newTestApp(permissions.Balance, permissions.Pay)
	user := testAdmin()
	ctx := context.Background()

	app.sessions.Push(ctx, user.TelegramID, session.Operation{Kind: session.OpPay})

	c := adminContext(user, "/balance")
	if err := app.cmdBalance(c); err != nil {
		t.Fatalf("cmdBalance: %v", err)
	}
	if !c.sentContains(txtOperationSuperseded) {
		t.Fatalf("missing supersede notice, sent: %v", c.sent)
	}
	if app.sessions.InProgress(user.TelegramID) {
		t.Fatal("pending operation survived /balance")
	}
}

func TestStartClearsSession(t *testing.T) {
	app, _ := newTestApp()
	user := testAdmin()
	ctx := context.Background()

	app.sessions.AppendTurn(ctx, user.TelegramID,
		ai.Message{Role: "user", Content: "hello"},
		ai.Message{Role: "assistant", Content: "hi"},
	)
	app.sessions.Push(ctx, user.TelegramID, session.Operation{Kind: session.OpPay})

	c := adminContext(user, "/start")
	if err := app.cmdStart(c); err != nil {
		t.Fatalf("cmdStart: %v", err)
	}
	if app.sessions.InProgress(user.TelegramID) {
		t.Fatal("pending operation survived /start")
	}
	if got := app.sessions.Load(ctx, user.TelegramID).Messages; len(got) != 0 {
		t.Fatalf("history survived /start: %d messages", len(got))
	}
	if !c.sentContains(txtWelcome) {
		t.Fatalf("missing welcome, sent: %v", c.sent)
	}
}

func TestChangePermissionTextHintsButtons(t *testing.T) {
	app, _ := newTestApp(permissions.ChangePermission)
	user := testAdmin()
	ctx := context.Background()

	app.sessions.Push(ctx, user.TelegramID, session.Operation{Kind: session.OpChangePermission})

	c := adminContext(user, "some free text")
	if err := app.ManagerHandler(c); err != nil {
		t.Fatalf("ManagerHandler: %v", err)
	}
	if !c.sentContains(txtUseButtons) {
		t.Fatalf("missing button hint, sent: %v", c.sent)
	}
	op, ok := app.sessions.Peek(ctx, user.TelegramID)
	if !ok || op.Kind != session.OpChangePermission {
		t.Fatal("permission dialog state lost on stray text")
	}
}
