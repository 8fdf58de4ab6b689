package session

import (
	"context"
	"time"

	"github.com/flx-it/assistbot/internal/ai"
)

// OpKind names a multi-step operation awaiting user input.
type OpKind string

const (
	OpRegister         OpKind = "register"
	OpRegisterConfirm  OpKind = "register_confirm"
	OpUpdateUser       OpKind = "update_user"
	OpDelete           OpKind = "delete"
	OpImage            OpKind = "image"
	OpUpscale          OpKind = "upscale"
	OpOutpaint         OpKind = "outpaint"
	OpReplace          OpKind = "replace"
	OpRecolor          OpKind = "recolor"
	OpRemoveBG         OpKind = "removebg"
	OpSketch           OpKind = "sketch"
	OpStyle            OpKind = "style"
	OpPay              OpKind = "pay"
	OpChangePermission OpKind = "change_permission"
)

// RegisterPayload carries the parsed registration request between the input
// step and the confirmation step.
type RegisterPayload struct {
	RoleName    string
	CompanyName string
	Username    string
}

// PermissionState tracks the admin's position in the permission dialog.
type PermissionState struct {
	SelectedUserID int64
	Page           int
}

// Operation is one entry on the pending-operation stack. Kind selects which
// payload field is meaningful.
type Operation struct {
	Kind       OpKind
	Register   RegisterPayload
	Permission PermissionState
}

// ExpectsPhoto reports whether the operation is resolved by a photo upload
// rather than a text message.
func (o Operation) ExpectsPhoto() bool {
	switch o.Kind {
	case OpUpscale, OpOutpaint, OpReplace, OpRecolor, OpRemoveBG, OpSketch, OpStyle:
		return true
	}
	return false
}

// Session is the per-user conversational state. Messages is the chat history
// replayed to the model on every turn; Pending is a stack, newest last.
type Session struct {
	Messages []ai.Message
	Pending  []Operation
}

// Store is the per-user session state surface. Implementations are safe for
// concurrent use.
type Store interface {
	// Load returns a copy of the user's session, creating an empty one if
	// none exists yet.
	Load(ctx context.Context, userID int64) Session
	// Reset drops the chat history and any pending operations, keeping the
	// session entry alive.
	Reset(ctx context.Context, userID int64)
	// Clear drops the entire session.
	Clear(ctx context.Context, userID int64)

	AppendTurn(ctx context.Context, userID int64, msgs ...ai.Message)
	SetHistory(ctx context.Context, userID int64, msgs []ai.Message)

	Push(ctx context.Context, userID int64, op Operation)
	// Pop removes and returns the newest pending operation.
	Pop(ctx context.Context, userID int64) (Operation, bool)
	// Peek returns the newest pending operation without consuming it.
	Peek(ctx context.Context, userID int64) (Operation, bool)
	ClearPending(ctx context.Context, userID int64)

	InProgress(userID int64) bool
	// Sweep drops sessions idle longer than ttl and reports how many went.
	Sweep(ttl time.Duration) int
}
