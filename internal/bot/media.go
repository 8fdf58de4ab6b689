package bot

import (
	"bytes"
	"fmt"
	"io"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/flx-it/assistbot/core/telegram/helpers"

	"github.com/flx-it/assistbot/internal/permissions"
)

// handlePhoto resolves the pending photo-expecting operation. A photo with no
// such operation pending is ignored.
func (a *App) handlePhoto(c tele.Context) error {
	user, ok := CurrentUser(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	op, pending := a.sessions.Peek(ctx, user.TelegramID)
	if !pending || !op.ExpectsPhoto() {
		return nil
	}
	ic, ok := transformByKind(op.Kind)
	if !ok {
		a.sessions.Pop(ctx, user.TelegramID)
		return nil
	}

	allowed, err := a.allowed(ctx, user, ic.capability)
	if err != nil {
		return err
	}
	if !allowed {
		a.sessions.Pop(ctx, user.TelegramID)
		return tghelpers.SendText(c, txtNoPermission)
	}

	msg := c.Message()
	if msg == nil || msg.Photo == nil {
		return nil
	}
	data, err := a.downloadFile(c, msg.Photo.MediaFile())
	if err != nil {
		return fmt.Errorf("photo download: %w", err)
	}

	a.sessions.Pop(ctx, user.TelegramID)
	return a.runTransform(c, user, ic, data, msg.Caption)
}

// handleVoice transcribes a voice note and feeds the text into a chat turn.
func (a *App) handleVoice(c tele.Context) error {
	user, ok := requireUser(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	allowed, err := a.allowed(ctx, user, permissions.VoiceMessages)
	if err != nil {
		return err
	}
	if !allowed {
		return tghelpers.SendText(c, txtNoPermission)
	}

	msg := c.Message()
	if msg == nil || msg.Voice == nil {
		return nil
	}
	data, err := a.downloadFile(c, msg.Voice.MediaFile())
	if err != nil {
		return fmt.Errorf("voice download: %w", err)
	}

	text, err := a.aiClient.Transcribe(ctx, bytes.NewReader(data), "voice.ogg")
	if err != nil {
		_ = tghelpers.SendText(c, txtVoiceFailed)
		return err
	}
	if err := tghelpers.SendMD(c, "🎤 _"+text+"_"); err != nil {
		return err
	}
	return a.chatTurn(c, text)
}

func (a *App) downloadFile(c tele.Context, file *tele.File) ([]byte, error) {
	rc, err := c.Bot().File(file)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
