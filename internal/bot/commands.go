package bot

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	tele "gopkg.in/telebot.v4"

	tg "github.com/flx-it/assistbot/core/telegram"
	"github.com/flx-it/assistbot/core/telegram/commands"
	tghelpers "github.com/flx-it/assistbot/core/telegram/helpers"
	"github.com/flx-it/assistbot/core/telegram/keyboard"

	"github.com/flx-it/assistbot/internal/ai"
	"github.com/flx-it/assistbot/internal/chat"
	"github.com/flx-it/assistbot/internal/permissions"
	"github.com/flx-it/assistbot/internal/session"
	"github.com/flx-it/assistbot/internal/storage"
)

const usersPerPage = 5

func (a *App) registerCommands(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.cmdStart,
		Description: "Start working with the bot",
	})
	reg.RegisterCommand("/new", commands.Command{
		Handler:     a.permissionGate(permissions.New, a.cmdNew),
		Description: "Start a new conversation",
	})
	reg.RegisterCommand("/balance", commands.Command{
		Handler:     a.permissionGate(permissions.Balance, a.cmdBalance),
		Description: "Show company wallet balance",
	})
	reg.RegisterCommand("/pay", commands.Command{
		Handler:     a.permissionGate(permissions.Pay, a.cmdPay),
		Description: "Top up the company wallet",
	})
	reg.RegisterCommand("/model_info", commands.Command{
		Handler:     a.permissionGate(permissions.ModelInfo, a.cmdModelInfo),
		Description: "Show and change the AI model",
	})
	reg.RegisterCommand("/register", commands.Command{
		Handler:     a.permissionGate(permissions.Register, a.cmdRegister),
		Description: "Register a new user",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/delete", commands.Command{
		Handler:     a.permissionGate(permissions.Delete, a.cmdDelete),
		Description: "Delete a user",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/show_users", commands.Command{
		Handler:     a.permissionGate(permissions.ShowUsers, a.cmdShowUsers),
		Description: "List company users",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/change_permission", commands.Command{
		Handler:     a.permissionGate(permissions.ChangePermission, a.cmdChangePermission),
		Description: "Grant or revoke user permissions",
		AdminOnly:   true,
	})

	for _, ic := range imageCommands() {
		reg.RegisterCommand("/"+ic.name, commands.Command{
			Handler:     a.permissionGate(ic.capability, a.cmdImageOp(ic)),
			Description: ic.description,
		})
	}
}

// cmdStart binds a pre-registered account to the sender and walks through
// onboarding: terms acceptance, then the name step.
func (a *App) cmdStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)

	user, ok := CurrentUser(c)
	if !ok {
		sender := c.Sender()
		if sender == nil || sender.Username == "" {
			return tghelpers.SendText(c, txtNotRegistered)
		}
		found, err := a.store.UserByUsername(ctx, sender.Username)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return tghelpers.SendText(c, txtNotRegistered)
			}
			return err
		}
		if found.TelegramID != 0 && found.TelegramID != sender.ID {
			return tghelpers.SendText(c, txtNotRegistered)
		}
		if err := a.store.BindTelegramID(ctx, found.ID, sender.ID); err != nil {
			return err
		}
		user = found
		user.TelegramID = sender.ID
	}

	// /start begins from a blank slate: history and pending operations go.
	a.sessions.Clear(ctx, user.TelegramID)

	if !user.TermsAccepted {
		markup := keyboard.InlineButtons([]keyboard.InlineBtn{
			{Text: txtTermsButton, Unique: cbAcceptTerms},
		})
		return tghelpers.SendMD(c, txtTerms, markup)
	}
	if !user.HasName() {
		a.sessions.Push(ctx, user.TelegramID, session.Operation{Kind: session.OpUpdateUser})
		return tghelpers.SendText(c, txtAskName)
	}
	return tghelpers.SendText(c, txtWelcome)
}

func (a *App) cmdNew(c tele.Context) error {
	user, ok := requireUser(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	// Reset drops pending operations along with the history.
	a.sessions.Reset(ctx, user.TelegramID)
	return tghelpers.SendText(c, txtNewChat)
}

func (a *App) cmdBalance(c tele.Context) error {
	user, ok := requireUser(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	a.supersedePending(c, user.TelegramID)

	wallet, err := a.store.WalletByCompany(ctx, user.CompanyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return tghelpers.SendText(c, txtNoWallet)
		}
		return err
	}
	return tghelpers.SendMD(c, fmt.Sprintf("💰 Balance: *%s %s*",
		wallet.Balance.StringFixed(2), wallet.Currency))
}

func (a *App) cmdPay(c tele.Context) error {
	user, ok := requireUser(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	a.supersedePending(c, user.TelegramID)
	a.sessions.Push(ctx, user.TelegramID, session.Operation{Kind: session.OpPay})
	return tghelpers.SendText(c, txtPayPrompt)
}

func (a *App) cmdModelInfo(c tele.Context) error {
	user, ok := requireUser(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	a.supersedePending(c, user.TelegramID)

	models, err := a.store.ListModels(ctx)
	if err != nil {
		return err
	}

	var current string
	if user.ModelID != nil {
		if m, err := a.store.ModelByID(ctx, *user.ModelID); err == nil {
			current = fmt.Sprintf("%s %s", m.Emoji, m.Name)
		}
	}
	header := "No model selected yet."
	if current != "" {
		header = fmt.Sprintf("Current model: *%s*", current)
	}

	btns := make([]keyboard.InlineBtn, 0, len(models)+1)
	for _, m := range models {
		btns = append(btns, keyboard.InlineBtn{
			Text:   fmt.Sprintf("%s %s", m.Emoji, m.Name),
			Unique: cbSetModel,
			Data:   fmt.Sprintf("%d", m.ID),
		})
	}
	btns = append(btns, keyboard.InlineBtn{Text: txtCloseButton, Unique: cbClose})
	return tghelpers.SendMD(c, header, keyboard.InlineButtons(btns))
}

func (a *App) cmdRegister(c tele.Context) error {
	user, ok := requireUser(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	a.supersedePending(c, user.TelegramID)
	a.sessions.Push(ctx, user.TelegramID, session.Operation{Kind: session.OpRegister})
	return tghelpers.SendText(c, txtRegisterPrompt)
}

func (a *App) cmdDelete(c tele.Context) error {
	user, ok := requireUser(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	a.supersedePending(c, user.TelegramID)
	a.sessions.Push(ctx, user.TelegramID, session.Operation{Kind: session.OpDelete})
	return tghelpers.SendText(c, txtDeletePrompt)
}

func (a *App) cmdShowUsers(c tele.Context) error {
	user, ok := requireUser(c)
	if !ok {
		return nil
	}
	a.supersedePending(c, user.TelegramID)
	text, markup, err := a.renderUsersPage(tghelpers.BuildContext(c), user.CompanyID, 0)
	if err != nil {
		return err
	}
	return tghelpers.SendMD(c, text, markup)
}

func (a *App) cmdChangePermission(c tele.Context) error {
	user, ok := requireUser(c)
	if !ok {
		return nil
	}
	a.supersedePending(c, user.TelegramID)
	markup, err := a.renderPermissionUserPicker(tghelpers.BuildContext(c), user.CompanyID, 0)
	if err != nil {
		return err
	}
	return tghelpers.SendMD(c, "Select a user:", markup)
}

// supersedePending clears any pending operation stack before a new command
// takes over, notifying the user if something was dropped.
func (a *App) supersedePending(c tele.Context, telegramID int64) {
	ctx := tghelpers.BuildContext(c)
	if a.sessions.InProgress(telegramID) {
		a.sessions.ClearPending(ctx, telegramID)
		_ = tghelpers.SendText(c, txtOperationSuperseded)
	}
}

// handleChatText is the registry text fallback: a plain message becomes a
// billed chat turn.
func (a *App) handleChatText(c tele.Context) error {
	return a.chatTurn(c, c.Text())
}

func (a *App) chatTurn(c tele.Context, text string) error {
	user, ok := requireUser(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	allowed, err := a.allowed(ctx, user, permissions.TextMessages)
	if err != nil {
		return err
	}
	if !allowed {
		return tghelpers.SendText(c, txtNoPermission)
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	res, err := a.chat.HandleTurn(ctx, user, text)
	if err != nil {
		return a.replyChatError(c, err)
	}
	return a.sendLongMarkdown(c, res.Reply)
}

func (a *App) replyChatError(c tele.Context, err error) error {
	// A paid-for reply that could not be billed or recorded is still
	// delivered, as a file.
	var perr *chat.PersistenceError
	if errors.As(err, &perr) && perr.ArtifactPath != "" {
		doc := &tele.Document{
			File:     tele.FromDisk(perr.ArtifactPath),
			FileName: filepath.Base(perr.ArtifactPath),
			Caption:  txtReplyPreserved,
		}
		_ = c.Send(doc)
	}

	switch {
	case errors.Is(err, chat.ErrNoModel):
		return tghelpers.SendText(c, txtNoModel)
	case errors.Is(err, chat.ErrNoWallet):
		return tghelpers.SendText(c, txtNoWallet)
	case errors.Is(err, chat.ErrInsufficientFunds), errors.Is(err, storage.ErrInsufficientFunds):
		return tghelpers.SendText(c, txtInsufficientFunds)
	}
	switch ai.KindOf(err) {
	case ai.KindQuota:
		return tghelpers.SendText(c, txtProviderBusy)
	case ai.KindModeration:
		return tghelpers.SendText(c, txtModerated)
	}
	return tghelpers.SendText(c, txtInternalError)
}

func (a *App) sendLongMarkdown(c tele.Context, text string) error {
	for _, part := range splitForTelegram(text) {
		if err := tghelpers.SendMD(c, part); err != nil {
			return err
		}
	}
	return nil
}
