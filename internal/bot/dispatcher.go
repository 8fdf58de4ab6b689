package bot

import (
	"errors"
	"regexp"
	"strings"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/flx-it/assistbot/core/telegram/helpers"
	"github.com/flx-it/assistbot/core/telegram/keyboard"
	"github.com/shopspring/decimal"

	"github.com/flx-it/assistbot/internal/domain"
	"github.com/flx-it/assistbot/internal/session"
	"github.com/flx-it/assistbot/internal/storage"
)

// Two words, letters only, covering Latin and Cyrillic names.
var nameRe = regexp.MustCompile(`^[A-Za-zА-Яа-яЁё]+ [A-Za-zА-Яа-яЁё]+$`)

// InProgress reports whether the sender has a pending multi-step operation.
// Satisfies the router FSM contract.
func (a *App) InProgress(userID int64) bool {
	return a.sessions.InProgress(userID)
}

// ManagerHandler consumes one text update against the top pending operation.
func (a *App) ManagerHandler(c tele.Context) error {
	user, ok := requireUser(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	text := strings.TrimSpace(c.Text())

	// A typed slash command always supersedes the pending operation.
	if strings.HasPrefix(text, "/") {
		a.sessions.ClearPending(ctx, user.TelegramID)
		_ = tghelpers.SendText(c, txtOperationSuperseded)
		return a.dispatchCommand(c, text)
	}

	op, ok := a.sessions.Peek(ctx, user.TelegramID)
	if !ok {
		return a.chatTurn(c, text)
	}

	// Text while a photo is expected cancels the operation and falls back
	// to a normal chat turn.
	if op.ExpectsPhoto() {
		a.sessions.ClearPending(ctx, user.TelegramID)
		_ = tghelpers.SendText(c, txtOperationSuperseded)
		return a.chatTurn(c, text)
	}

	switch op.Kind {
	case session.OpUpdateUser:
		return a.stepUpdateUser(c, user, text)
	case session.OpRegister:
		return a.stepRegister(c, user, text)
	case session.OpRegisterConfirm:
		return tghelpers.SendText(c, txtUseButtons)
	case session.OpDelete:
		return a.stepDelete(c, user, text)
	case session.OpPay:
		return a.stepPay(c, user, text)
	case session.OpImage:
		return a.stepImage(c, user, text)
	case session.OpChangePermission:
		// Driven entirely by inline buttons.
		return tghelpers.SendText(c, txtUseButtons)
	}

	a.sessions.ClearPending(ctx, user.TelegramID)
	return a.chatTurn(c, text)
}

// dispatchCommand runs a slash command typed while an operation was pending.
func (a *App) dispatchCommand(c tele.Context, text string) error {
	fields := strings.Fields(text)
	if len(fields) == 0 || a.reg == nil {
		return nil
	}
	if _, cmd, ok := a.reg.LookupCommand(fields[0]); ok && cmd.Handler != nil {
		return cmd.Handler(c)
	}
	return nil
}

func (a *App) stepUpdateUser(c tele.Context, user domain.User, text string) error {
	ctx := tghelpers.BuildContext(c)
	if !nameRe.MatchString(text) {
		return tghelpers.SendText(c, txtBadName)
	}
	parts := strings.SplitN(text, " ", 2)
	if err := a.store.SetUserName(ctx, user.ID, parts[0], parts[1]); err != nil {
		return err
	}
	a.sessions.Pop(ctx, user.TelegramID)
	return tghelpers.SendText(c, txtWelcome)
}

// stepRegister parses "role\n@username" and asks for confirmation.
func (a *App) stepRegister(c tele.Context, admin domain.User, text string) error {
	ctx := tghelpers.BuildContext(c)

	lines := strings.Split(text, "\n")
	if len(lines) != 2 {
		return tghelpers.SendText(c, txtRegisterPrompt)
	}
	roleName := strings.TrimSpace(lines[0])
	username := strings.TrimPrefix(strings.TrimSpace(lines[1]), "@")
	if roleName == "" || username == "" {
		return tghelpers.SendText(c, txtRegisterPrompt)
	}

	role, err := a.store.RoleByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return tghelpers.SendText(c, txtRegisterBadRole)
		}
		return err
	}
	if _, err := a.store.UserByUsername(ctx, username); err == nil {
		return tghelpers.SendText(c, txtRegisterExists)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	company, err := a.store.CompanyByID(ctx, admin.CompanyID)
	if err != nil {
		return err
	}

	a.sessions.Pop(ctx, admin.TelegramID)
	a.sessions.Push(ctx, admin.TelegramID, session.Operation{
		Kind: session.OpRegisterConfirm,
		Register: session.RegisterPayload{
			RoleName:    role.Name,
			CompanyName: company.Name,
			Username:    username,
		},
	})

	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: txtRegisterYes, Unique: cbRegisterYes},
		{Text: txtRegisterNo, Unique: cbRegisterNo},
	})
	return tghelpers.SendMD(c,
		"Register *@"+username+"* as *"+role.Name+"* in *"+company.Name+"*?",
		markup)
}

func (a *App) stepDelete(c tele.Context, admin domain.User, text string) error {
	ctx := tghelpers.BuildContext(c)
	username := strings.TrimPrefix(strings.TrimSpace(text), "@")

	a.sessions.Pop(ctx, admin.TelegramID)
	if err := a.store.DeleteUser(ctx, username); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return tghelpers.SendText(c, txtDeleteNotFound)
		}
		return err
	}
	return tghelpers.SendText(c, txtDeleteDone)
}

func (a *App) stepPay(c tele.Context, user domain.User, text string) error {
	ctx := tghelpers.BuildContext(c)

	amount, err := decimal.NewFromString(strings.ReplaceAll(text, ",", "."))
	if err != nil || !amount.IsPositive() {
		return tghelpers.SendText(c, txtPayBadAmount)
	}

	a.sessions.Pop(ctx, user.TelegramID)
	url, err := a.payments.CreatePayment(ctx, user.CompanyID, amount, "Wallet top-up")
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return tghelpers.SendText(c, txtNoWallet)
		}
		return tghelpers.SendText(c, txtInternalError)
	}
	return tghelpers.SendMD(c, "💳 [Pay "+amount.StringFixed(2)+"]("+url+")")
}
