package notify

import (
	"context"
	"log/slog"
)

// LogSink writes notifications to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

var _ Sink = (*LogSink)(nil)

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "notify_log")}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Send(ctx context.Context, n Notification) error {
	level := slog.LevelInfo
	if n.Level == LevelWarning {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, n.Message,
		slog.String("notification_id", n.ID.String()),
		slog.String("kind", string(n.Kind)),
		slog.String("cart", n.Cart),
		slog.String("product_id", n.ProductID),
		slog.Int("total_items", n.TotalItems),
		slog.String("total_price", n.TotalPrice.String()),
	)
	return nil
}
