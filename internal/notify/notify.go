// Package notify is the Fatal escalation path of spec §7: the one failure
// mode the spec calls out as requiring outbound notification, not just an
// event-bus record, is a transaction that ends in the fatal state because
// rollback itself failed. Grounded on the teacher's pkg/slack.Notifier for
// the slack-go/slack wrapper idiom (noop when no bot token is configured),
// generalized from the teacher's incident-alert message shape (cluster,
// namespace, on-call user) to the one fatal-escalation payload this system
// needs: a backup id an operator can use for manual recovery.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	goslack "github.com/slack-go/slack"
)

// Notifier posts fatal-escalation messages to a single Slack channel.
type Notifier struct {
	client  *goslack.Client
	channel string
	logger  *slog.Logger
}

// New creates a Notifier. If botToken is empty the notifier is a noop:
// NotifyFatal logs and returns nil instead of erroring, so a missing Slack
// credential never blocks the rollback path it's reporting on.
func New(botToken, channel string, logger *slog.Logger) *Notifier {
	var client *goslack.Client
	if botToken != "" {
		client = goslack.New(botToken)
	}
	return &Notifier{client: client, channel: channel, logger: logger}
}

// IsEnabled reports whether the notifier has a usable client and channel.
func (n *Notifier) IsEnabled() bool {
	return n.client != nil && n.channel != ""
}

// NotifyFatal posts the escalation message spec §7 requires when rollback
// itself fails: the failed phase, the cause, and the backup id needed for
// manual recovery.
func (n *Notifier) NotifyFatal(ctx context.Context, backupID string, failedPhase string, cause error) error {
	if !n.IsEnabled() {
		n.logger.Warn("slack notifier disabled, fatal escalation not sent",
			"backup_id", backupID, "failed_phase", failedPhase, "cause", cause)
		return nil
	}

	blocks := fatalEscalationBlocks(backupID, failedPhase, cause)
	text := fmt.Sprintf("🔴 FATAL: rollback failed after %s (backup %s): %v", failedPhase, backupID, cause)

	_, ts, err := n.client.PostMessageContext(ctx, n.channel,
		goslack.MsgOptionBlocks(blocks...),
		goslack.MsgOptionText(text, false),
	)
	if err != nil {
		return fmt.Errorf("posting fatal escalation to slack: %w", err)
	}

	n.logger.Error("posted fatal escalation to slack",
		"backup_id", backupID, "failed_phase", failedPhase, "ts", ts)
	return nil
}

func fatalEscalationBlocks(backupID, failedPhase string, cause error) []goslack.Block {
	header := goslack.NewHeaderBlock(
		goslack.NewTextBlockObject(goslack.PlainTextType, "🔴 FATAL: manual recovery required", true, false),
	)

	fields := []*goslack.TextBlockObject{
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Failed phase:* %s", failedPhase), false, false),
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Backup ID:* `%s`", backupID), false, false),
	}
	section := goslack.NewSectionBlock(nil, fields, nil)

	causeSection := goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Cause:* %s", cause.Error()), false, false),
		nil, nil,
	)

	return []goslack.Block{header, section, causeSection}
}
