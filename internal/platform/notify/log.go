// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications to the log instead of sending them.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a [LogNotifier].
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send implements [Notifier]. It always reports delivery.
func (notifier *LogNotifier) Send(ctx context.Context, template, recipient string, data map[string]any) (bool, string) {
	message := Render(template, data)

	notifier.logger.InfoContext(ctx, "notification_logged",
		slog.String("template", template),
		slog.String("recipient", recipient),
		slog.String("subject", message.Subject),
	)
	notifier.logger.DebugContext(ctx, "notification_body", slog.String("body", message.Body))

	return true, "logged"
}
