package session

import (
	"context"
	"testing"
	"time"

	"github.com/flx-it/assistbot/internal/ai"
)

func TestMemoryStoreHistory(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	s.AppendTurn(ctx, 1,
		ai.Message{Role: ai.RoleUser, Content: "hi"},
		ai.Message{Role: ai.RoleAssistant, Content: "hello"},
	)
	got := s.Load(ctx, 1)
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}

	// Load returns a copy: mutating it must not touch the store.
	got.Messages[0].Content = "changed"
	if s.Load(ctx, 1).Messages[0].Content != "hi" {
		t.Fatal("Load leaked internal state")
	}

	s.Reset(ctx, 1)
	if len(s.Load(ctx, 1).Messages) != 0 {
		t.Fatal("Reset did not clear history")
	}
}

func TestMemoryStorePendingStack(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if s.InProgress(7) {
		t.Fatal("empty store reports progress")
	}

	s.Push(ctx, 7, Operation{Kind: OpRegister})
	s.Push(ctx, 7, Operation{Kind: OpRegisterConfirm})
	if !s.InProgress(7) {
		t.Fatal("pending operation not reported")
	}

	op, ok := s.Peek(ctx, 7)
	if !ok || op.Kind != OpRegisterConfirm {
		t.Fatalf("peek = %v %v, want register_confirm", op.Kind, ok)
	}

	op, ok = s.Pop(ctx, 7)
	if !ok || op.Kind != OpRegisterConfirm {
		t.Fatalf("pop = %v %v, want register_confirm", op.Kind, ok)
	}
	op, ok = s.Pop(ctx, 7)
	if !ok || op.Kind != OpRegister {
		t.Fatalf("pop = %v %v, want register", op.Kind, ok)
	}
	if _, ok := s.Pop(ctx, 7); ok {
		t.Fatal("pop on empty stack succeeded")
	}
}

func TestMemoryStoreResetClearsPending(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	s.AppendTurn(ctx, 3, ai.Message{Role: ai.RoleUser, Content: "hi"})
	s.Push(ctx, 3, Operation{Kind: OpPay})
	s.Push(ctx, 3, Operation{Kind: OpDelete})
	s.Reset(ctx, 3)

	if len(s.Load(ctx, 3).Messages) != 0 {
		t.Fatal("history survived reset")
	}
	if s.InProgress(3) {
		t.Fatal("pending operations survived reset")
	}
}

func TestMemoryStoreClearPending(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	s.Push(ctx, 5, Operation{Kind: OpImage})
	s.ClearPending(ctx, 5)
	if s.InProgress(5) {
		t.Fatal("pending operations survived clear")
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	s.AppendTurn(ctx, 1, ai.Message{Role: ai.RoleUser, Content: "old"})
	time.Sleep(15 * time.Millisecond)
	if removed := s.Sweep(10 * time.Millisecond); removed != 1 {
		t.Fatalf("sweep removed %d, want 1", removed)
	}
	if len(s.Load(ctx, 1).Messages) != 0 {
		t.Fatal("session survived sweep")
	}

	s.AppendTurn(ctx, 2, ai.Message{Role: ai.RoleUser, Content: "fresh"})
	if removed := s.Sweep(time.Hour); removed != 0 {
		t.Fatalf("sweep removed fresh session")
	}
}

func TestOperationExpectsPhoto(t *testing.T) {
	photoKinds := []OpKind{OpUpscale, OpOutpaint, OpReplace, OpRecolor, OpRemoveBG, OpSketch, OpStyle}
	for _, k := range photoKinds {
		if !(Operation{Kind: k}).ExpectsPhoto() {
			t.Fatalf("%s should expect a photo", k)
		}
	}
	for _, k := range []OpKind{OpRegister, OpImage, OpPay, OpDelete} {
		if (Operation{Kind: k}).ExpectsPhoto() {
			t.Fatalf("%s should not expect a photo", k)
		}
	}
}
