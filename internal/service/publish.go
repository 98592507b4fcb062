package service

import (
	"context"

	"github.com/wgdashboard/wg_dashboard/internal/events"
	"github.com/wgdashboard/wg_dashboard/internal/logging"
)

func publish(ctx context.Context, pub events.Publisher, ev events.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "type", ev.Type, "account_id", ev.AccountID, "error", err)
	}
}
