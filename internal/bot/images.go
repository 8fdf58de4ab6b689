package bot

import (
	"bytes"
	"context"
	"errors"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/flx-it/assistbot/core/telegram/helpers"
	"github.com/shopspring/decimal"

	"github.com/flx-it/assistbot/internal/ai"
	"github.com/flx-it/assistbot/internal/chat"
	"github.com/flx-it/assistbot/internal/domain"
	"github.com/flx-it/assistbot/internal/permissions"
	"github.com/flx-it/assistbot/internal/session"
	"github.com/flx-it/assistbot/internal/storage"
)

// Flat prices per image operation, in wallet currency units.
var (
	imageGenPrice       = decimal.RequireFromString("0.06")
	imageTransformPrice = decimal.RequireFromString("0.08")
)

type imageCommand struct {
	name        string
	capability  string
	kind        session.OpKind
	transform   ai.TransformKind
	description string
	prompt      string
}

func imageCommands() []imageCommand {
	return []imageCommand{
		{name: "image", capability: permissions.Image, kind: session.OpImage,
			description: "Generate an image from text", prompt: txtImagePrompt},
		{name: "upscale", capability: permissions.Upscale, kind: session.OpUpscale,
			transform: ai.TransformUpscale, description: "Upscale a photo", prompt: txtPhotoPrompt},
		{name: "outpaint", capability: permissions.Outpaint, kind: session.OpOutpaint,
			transform: ai.TransformOutpaint, description: "Extend a photo beyond its borders", prompt: txtPhotoPrompt},
		{name: "replace", capability: permissions.Replace, kind: session.OpReplace,
			transform: ai.TransformReplace, description: "Replace an object on a photo", prompt: txtReplacePrompt},
		{name: "recolor", capability: permissions.Recolor, kind: session.OpRecolor,
			transform: ai.TransformRecolor, description: "Recolor an object on a photo", prompt: txtRecolorPrompt},
		{name: "removebg", capability: permissions.RemoveBG, kind: session.OpRemoveBG,
			transform: ai.TransformRemoveBG, description: "Remove the photo background", prompt: txtPhotoPrompt},
		{name: "sketch", capability: permissions.Sketch, kind: session.OpSketch,
			transform: ai.TransformSketch, description: "Turn a sketch into an image", prompt: txtPhotoPrompt},
		{name: "style", capability: permissions.Style, kind: session.OpStyle,
			transform: ai.TransformStyle, description: "Restyle a photo", prompt: txtPhotoPrompt},
	}
}

func transformByKind(kind session.OpKind) (imageCommand, bool) {
	for _, ic := range imageCommands() {
		if ic.kind == kind && ic.transform != "" {
			return ic, true
		}
	}
	return imageCommand{}, false
}

// cmdImageOp builds the command handler that arms an image operation.
func (a *App) cmdImageOp(ic imageCommand) tele.HandlerFunc {
	return func(c tele.Context) error {
		user, ok := requireUser(c)
		if !ok {
			return nil
		}
		ctx := tghelpers.BuildContext(c)
		a.supersedePending(c, user.TelegramID)
		a.sessions.Push(ctx, user.TelegramID, session.Operation{Kind: ic.kind})
		return tghelpers.SendText(c, ic.prompt)
	}
}

// stepImage handles the prompt for text-to-image generation.
func (a *App) stepImage(c tele.Context, user domain.User, prompt string) error {
	ctx := tghelpers.BuildContext(c)
	a.sessions.Pop(ctx, user.TelegramID)

	if err := a.preflightWallet(ctx, user, imageGenPrice); err != nil {
		return a.replyChatError(c, err)
	}

	// The image model works best with English prompts.
	translated, err := a.aiClient.Translate(ctx, prompt, "English")
	if err != nil {
		translated = prompt
	}

	img, err := a.images.Generate(ctx, translated)
	if err != nil {
		return a.replyChatError(c, err)
	}
	if err := a.billImageOp(ctx, user, "generate", prompt, imageGenPrice); err != nil {
		return a.replyChatError(c, err)
	}
	return a.sendPhoto(c, img)
}

// runTransform applies a pending photo transformation and bills it.
func (a *App) runTransform(c tele.Context, user domain.User, ic imageCommand, photo []byte, caption string) error {
	ctx := tghelpers.BuildContext(c)

	if err := a.preflightWallet(ctx, user, imageTransformPrice); err != nil {
		return a.replyChatError(c, err)
	}

	prompt := caption
	if prompt != "" {
		if translated, err := a.aiClient.Translate(ctx, prompt, "English"); err == nil {
			prompt = translated
		}
	}

	img, err := a.images.Transform(ctx, ic.transform, photo, prompt)
	if err != nil {
		return a.replyChatError(c, err)
	}
	if err := a.billImageOp(ctx, user, string(ic.transform), caption, imageTransformPrice); err != nil {
		return a.replyChatError(c, err)
	}
	return a.sendPhoto(c, img)
}

// preflightWallet rejects the operation before any provider spend when the
// wallet is missing or short on funds.
func (a *App) preflightWallet(ctx context.Context, user domain.User, price decimal.Decimal) error {
	wallet, err := a.store.WalletByCompany(ctx, user.CompanyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return chat.ErrNoWallet
		}
		return err
	}
	if wallet.Balance.LessThan(price) {
		return chat.ErrInsufficientFunds
	}
	return nil
}

// billImageOp records the debit and audit entry for a finished image call.
func (a *App) billImageOp(ctx context.Context, user domain.User, op, prompt string, price decimal.Decimal) error {
	wallet, err := a.store.WalletByCompany(ctx, user.CompanyID)
	if err != nil {
		return err
	}
	_, err = a.store.ChargeAndRecord(ctx, wallet.ID, domain.Request{
		Model:        "stability-" + op,
		UserID:       user.ID,
		CompanyID:    user.CompanyID,
		InputMessage: prompt,
		Price:        price,
	})
	return err
}

func (a *App) sendPhoto(c tele.Context, img []byte) error {
	photo := &tele.Photo{File: tele.FromReader(bytes.NewReader(img))}
	return c.Send(photo)
}
