package notifier

import (
	"context"

	logx "pagewatch/pkg/logx"
)

// LogOnly writes alerts to the log instead of a chat. It never fails.
type LogOnly struct {
	log logx.Logger
}

func NewLogOnly(log logx.Logger) *LogOnly {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LogOnly{log: log}
}

func (l *LogOnly) Notify(_ context.Context, text string) error {
	l.log.Warn("alert (no chat configured)", logx.String("text", text))
	return nil
}
