package bot

import (
	"errors"
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v4"

	tg "github.com/flx-it/assistbot/core/telegram"
	"github.com/flx-it/assistbot/core/telegram/callbacks"
	tghelpers "github.com/flx-it/assistbot/core/telegram/helpers"

	"github.com/flx-it/assistbot/internal/domain"
	"github.com/flx-it/assistbot/internal/permissions"
	"github.com/flx-it/assistbot/internal/session"
	"github.com/flx-it/assistbot/internal/storage"
)

// Callback keys. Inline buttons carry these as the telebot unique.
const (
	cbAcceptTerms = "accept_terms"
	cbRegisterYes = "register_yes"
	cbRegisterNo  = "register_no"
	cbClose       = "close"
	cbSetModel    = "set_model"
	cbUsersPage   = "users_page"
	cbPermPage    = "perm_page"
	cbPermUser    = "perm_user"
	cbPermToggle  = "perm_toggle"
)

func (a *App) registerCallbacks(reg *tg.Registry) {
	_ = reg.RegisterCallback(cbAcceptTerms, a.cbAcceptTerms)
	_ = reg.RegisterCallback(cbRegisterYes, a.cbRegisterConfirm(true))
	_ = reg.RegisterCallback(cbRegisterNo, a.cbRegisterConfirm(false))
	_ = reg.RegisterCallback(cbClose, a.cbClose)
	_ = reg.RegisterCallback(cbSetModel, a.cbSetModel)
	_ = reg.RegisterCallback(cbUsersPage, a.cbUsersPage)
	_ = reg.RegisterCallback(cbPermPage, a.cbPermPage)
	_ = reg.RegisterCallback(cbPermUser, a.cbPermUser)
	_ = reg.RegisterCallback(cbPermToggle, a.cbPermToggle)
}

func (a *App) cbAcceptTerms(c tele.Context) error {
	user, ok := requireUser(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	if err := a.store.SetTermsAccepted(ctx, user.ID); err != nil {
		return err
	}
	_ = c.Delete()

	if !user.HasName() {
		a.sessions.Push(ctx, user.TelegramID, session.Operation{Kind: session.OpUpdateUser})
		return tghelpers.SendText(c, txtAskName)
	}
	return tghelpers.SendText(c, txtWelcome)
}

// cbRegisterConfirm resolves the yes/no decision for a pending registration.
func (a *App) cbRegisterConfirm(confirmed bool) tele.HandlerFunc {
	return func(c tele.Context) error {
		admin, ok := requireUser(c)
		if !ok {
			return nil
		}
		ctx := tghelpers.BuildContext(c)

		op, pending := a.sessions.Pop(ctx, admin.TelegramID)
		if !pending || op.Kind != session.OpRegisterConfirm {
			return tghelpers.EditMD(c, txtRegisterCancel)
		}
		if !confirmed {
			return tghelpers.EditMD(c, txtRegisterCancel)
		}

		role, err := a.store.RoleByName(ctx, op.Register.RoleName)
		if err != nil {
			return err
		}
		company, err := a.store.CompanyByName(ctx, op.Register.CompanyName)
		if err != nil {
			return err
		}

		_, err = a.store.CreateUser(ctx, domain.User{
			TelegramUsername: op.Register.Username,
			RoleID:           role.ID,
			CompanyID:        company.ID,
			IsActive:         true,
		})
		if err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				return tghelpers.EditMD(c, txtRegisterExists)
			}
			return err
		}
		return tghelpers.EditMD(c, txtRegisterDone)
	}
}

func (a *App) cbClose(c tele.Context) error {
	return c.Delete()
}

func (a *App) cbSetModel(c tele.Context) error {
	user, ok := requireUser(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	allowed, err := a.allowed(ctx, user, permissions.ChangeModel)
	if err != nil {
		return err
	}
	if !allowed {
		return tghelpers.EditMD(c, txtNoPermission)
	}

	modelID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}
	model, err := a.store.ModelByID(ctx, modelID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return tghelpers.EditMD(c, txtInternalError)
		}
		return err
	}
	if err := a.store.SetUserModel(ctx, user.ID, model.ID); err != nil {
		return err
	}
	return tghelpers.EditMD(c, fmt.Sprintf("Model switched to *%s %s*", model.Emoji, model.Name))
}

func (a *App) cbUsersPage(c tele.Context) error {
	user, ok := requireUser(c)
	if !ok {
		return nil
	}
	page, err := callbacks.PayloadInt(c)
	if err != nil {
		return err
	}
	text, markup, err := a.renderUsersPage(tghelpers.BuildContext(c), user.CompanyID, page)
	if err != nil {
		return err
	}
	return tghelpers.EditOrSendMD(c, text, markup)
}

func (a *App) cbPermPage(c tele.Context) error {
	user, ok := requireUser(c)
	if !ok {
		return nil
	}
	page, err := callbacks.PayloadInt(c)
	if err != nil {
		return err
	}
	markup, err := a.renderPermissionUserPicker(tghelpers.BuildContext(c), user.CompanyID, page)
	if err != nil {
		return err
	}
	return tghelpers.EditOrSendMD(c, "Select a user:", markup)
}

func (a *App) cbPermUser(c tele.Context) error {
	admin, ok := requireUser(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	allowed, err := a.allowed(ctx, admin, permissions.ChangePermission)
	if err != nil {
		return err
	}
	if !allowed {
		return tghelpers.EditMD(c, txtNoPermission)
	}

	targetID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}
	text, markup, err := a.renderPermissionEditor(ctx, targetID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return tghelpers.EditMD(c, txtDeleteNotFound)
		}
		return err
	}
	return tghelpers.EditOrSendMD(c, text, markup)
}

// cbPermToggle flips one capability for the target user. Payload is
// "<userID>:<capability>".
func (a *App) cbPermToggle(c tele.Context) error {
	admin, ok := requireUser(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	allowed, err := a.allowed(ctx, admin, permissions.ChangePermission)
	if err != nil {
		return err
	}
	if !allowed {
		return tghelpers.EditMD(c, txtNoPermission)
	}

	parts, err := callbacks.PayloadParts(c, ":")
	if err != nil || len(parts) != 2 {
		return tghelpers.EditMD(c, txtInternalError)
	}
	targetID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return err
	}
	capability := parts[1]
	if !permissions.Known(capability) {
		return tghelpers.EditMD(c, txtInternalError)
	}

	target, err := a.store.UserByID(ctx, targetID)
	if err != nil {
		return err
	}
	role, err := a.store.RoleByID(ctx, target.RoleID)
	if err != nil {
		return err
	}

	if permissions.Has(role.Permissions, target.PermsAdd, target.PermsRemove, capability) {
		err = a.store.RemovePermission(ctx, target.ID, capability)
	} else {
		err = a.store.AddPermission(ctx, target.ID, capability)
	}
	if err != nil {
		return err
	}

	text, markup, err := a.renderPermissionEditor(ctx, targetID)
	if err != nil {
		return err
	}
	return tghelpers.EditOrSendMD(c, text, markup)
}
