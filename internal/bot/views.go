package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/flx-it/assistbot/core/telegram/format"
	"github.com/flx-it/assistbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"

	"github.com/flx-it/assistbot/internal/permissions"
)

// Telegram caps messages at 4096 chars; leave headroom for markers the
// splitter re-opens across fragments.
const telegramSplitLimit = 4000

func splitForTelegram(text string) []string {
	return format.SplitMarkdown(text, telegramSplitLimit)
}

// renderUsersPage builds the /show_users page text and pagination keyboard.
func (a *App) renderUsersPage(ctx context.Context, companyID int64, page int) (string, *tele.ReplyMarkup, error) {
	if page < 0 {
		page = 0
	}
	users, total, err := a.store.ListUsersByCompany(ctx, companyID, page*usersPerPage, usersPerPage)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👥 Users (%d total)\n\n", total))
	for _, u := range users {
		status := "⏳"
		if u.TelegramID != 0 {
			status = "✅"
		}
		name := strings.TrimSpace(u.Firstname + " " + u.Lastname)
		if name == "" {
			name = "—"
		}
		sb.WriteString(fmt.Sprintf("%s @%s · %s\n", status, u.TelegramUsername, name))
	}

	markup := paginationMarkup(cbUsersPage, page, total)
	return sb.String(), markup, nil
}

// renderPermissionUserPicker builds the user selection keyboard for the
// permission dialog.
func (a *App) renderPermissionUserPicker(ctx context.Context, companyID int64, page int) (*tele.ReplyMarkup, error) {
	if page < 0 {
		page = 0
	}
	users, total, err := a.store.ListUsersByCompany(ctx, companyID, page*usersPerPage, usersPerPage)
	if err != nil {
		return nil, err
	}

	var rows [][]keyboard.InlineBtn
	for _, u := range users {
		rows = append(rows, []keyboard.InlineBtn{{
			Text:   "@" + u.TelegramUsername,
			Unique: cbPermUser,
			Data:   fmt.Sprintf("%d", u.ID),
		}})
	}
	rows = append(rows, navRow(cbPermPage, page, total))
	return keyboard.InlineButtonsRows(rows...), nil
}

// renderPermissionEditor builds the capability toggle keyboard for one user.
func (a *App) renderPermissionEditor(ctx context.Context, targetID int64) (string, *tele.ReplyMarkup, error) {
	target, err := a.store.UserByID(ctx, targetID)
	if err != nil {
		return "", nil, err
	}
	role, err := a.store.RoleByID(ctx, target.RoleID)
	if err != nil {
		return "", nil, err
	}
	effective := permissions.Effective(role.Permissions, target.PermsAdd, target.PermsRemove)

	btns := make([]keyboard.InlineBtn, 0, len(permissions.All))
	for _, capability := range permissions.All {
		mark := "❌"
		if effective[capability] {
			mark = "✅"
		}
		btns = append(btns, keyboard.InlineBtn{
			Text:   mark + " " + capability,
			Unique: cbPermToggle,
			Data:   fmt.Sprintf("%d:%s", target.ID, capability),
		})
	}

	markup := keyboard.InlineButtonsNPerRow(btns, 2)
	markup.InlineKeyboard = append(markup.InlineKeyboard,
		inlineRow(keyboard.InlineBtn{Text: "⬅️ Back", Unique: cbPermPage, Data: "0"}),
		inlineRow(keyboard.InlineBtn{Text: txtCloseButton, Unique: cbClose}),
	)
	text := fmt.Sprintf("Permissions for *@%s* (role: %s)", target.TelegramUsername, role.Name)
	return text, markup, nil
}

// paginationMarkup renders prev/next plus a close button when needed.
func paginationMarkup(pageKey string, page, total int) *tele.ReplyMarkup {
	nav := navRow(pageKey, page, total)
	rows := [][]keyboard.InlineBtn{nav}
	if len(nav) != 1 || nav[0].Unique != cbClose {
		rows = append(rows, []keyboard.InlineBtn{{Text: txtCloseButton, Unique: cbClose}})
	}
	return keyboard.InlineButtonsRows(rows...)
}

func navRow(pageKey string, page, total int) []keyboard.InlineBtn {
	var row []keyboard.InlineBtn
	if page > 0 {
		row = append(row, keyboard.InlineBtn{
			Text: "⬅️", Unique: pageKey, Data: fmt.Sprintf("%d", page-1),
		})
	}
	if (page+1)*usersPerPage < total {
		row = append(row, keyboard.InlineBtn{
			Text: "➡️", Unique: pageKey, Data: fmt.Sprintf("%d", page+1),
		})
	}
	if len(row) == 0 {
		row = append(row, keyboard.InlineBtn{Text: txtCloseButton, Unique: cbClose})
	}
	return row
}

func inlineRow(btns ...keyboard.InlineBtn) []tele.InlineButton {
	markup := &tele.ReplyMarkup{}
	row := make([]tele.InlineButton, len(btns))
	for i, b := range btns {
		row[i] = *markup.Data(b.Text, b.Unique, b.Data).Inline()
	}
	return row
}
