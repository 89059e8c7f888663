package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func newTestNotifier() *Notifier {
	return New("", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestIsEnabled_NoTokenIsDisabled(t *testing.T) {
	n := newTestNotifier()
	if n.IsEnabled() {
		t.Fatal("expected notifier without a bot token to be disabled")
	}
}

func TestNotifyFatal_NoopWhenDisabled(t *testing.T) {
	n := newTestNotifier()
	err := n.NotifyFatal(context.Background(), "backup-1", "reloading", errors.New("reload refused new config"))
	if err != nil {
		t.Fatalf("NotifyFatal returned %v, want nil for a disabled notifier", err)
	}
}
