package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContextReturnsAttachedLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	attached := zap.New(core)

	ctx := ContextWithLogger(context.Background(), attached)
	FromContext(ctx, zap.NewNop()).Info("scoped")

	if logs.Len() != 1 {
		t.Fatalf("attached logger recorded %d entries, want 1", logs.Len())
	}
	if logs.All()[0].Message != "scoped" {
		t.Errorf("message = %q", logs.All()[0].Message)
	}
}

func TestFromContextFallsBack(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	def := zap.New(core)

	FromContext(context.Background(), def).Info("default")
	if logs.Len() != 1 {
		t.Fatalf("fallback logger recorded %d entries, want 1", logs.Len())
	}

	if got := FromContext(context.Background(), nil); got == nil {
		t.Fatal("nil fallback must yield a usable logger")
	}
}
