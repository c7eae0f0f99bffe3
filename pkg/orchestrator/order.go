package orchestrator

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/crewnotify/pkg/audit"
	"github.com/dmitrymomot/crewnotify/pkg/channel"
	"github.com/dmitrymomot/crewnotify/pkg/events"
	"github.com/dmitrymomot/crewnotify/pkg/logger"
	"github.com/dmitrymomot/crewnotify/pkg/notifications"
	"github.com/dmitrymomot/crewnotify/pkg/workforce"
)

// HandleMaterialOrder processes a material order event. A returned error
// means the event should be redelivered.
func (o *Orchestrator) HandleMaterialOrder(ctx context.Context, ev events.MaterialOrderEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if ev.Op == events.OpCreate {
		return o.orderCreated(ctx, ev)
	}
	return o.orderUpdated(ctx, ev)
}

func (o *Orchestrator) orderCreated(ctx context.Context, ev events.MaterialOrderEvent) error {
	order := ev.After
	o.audit(ctx, ActionOrderCreate,
		audit.WithResource("material_order", order.ID),
		audit.WithMetadata("event_id", ev.ID),
		audit.WithMetadata("foreman_id", order.ForemanID),
		audit.WithMetadata("items", len(order.Items)),
	)

	users, err := o.recipients(ctx, workforce.RoleAdmin, workforce.RoleWarehouse)
	if err != nil {
		return err
	}
	payload := orderPayload(order)
	intents := make([]notifications.Intent, 0, len(users))
	for _, u := range users {
		intents = append(intents, o.intent(ev.ID, u, TemplateNewOrder, channel.CategoryMaterialOrder, payload))
	}
	n, err := o.fanout.Dispatch(ctx, intents...)
	o.logger.LogAttrs(ctx, slog.LevelInfo, "material order announced",
		logger.EntityID(order.ID),
		slog.Int("notified", n),
	)
	return err
}

func (o *Orchestrator) orderUpdated(ctx context.Context, ev events.MaterialOrderEvent) error {
	before, after := *ev.Before, ev.After
	if before.Status == after.Status {
		return nil
	}

	o.audit(ctx, ActionOrderStatusChange,
		audit.WithResource("material_order", after.ID),
		audit.WithMetadata("event_id", ev.ID),
		audit.WithMetadata("from", string(before.Status)),
		audit.WithMetadata("to", string(after.Status)),
	)

	if after.Status == workforce.OrderPending {
		return nil
	}
	if after.ForemanID == "" {
		o.logger.LogAttrs(ctx, slog.LevelInfo, "no foreman reference, skipping notification", logger.EntityID(after.ID))
		return nil
	}

	foreman, err := o.user(ctx, after.ForemanID)
	if err != nil {
		return err
	}
	_, err = o.fanout.Dispatch(ctx, o.intent(ev.ID, foreman, TemplateOrderStatus, channel.CategoryMaterialOrder, orderPayload(after)))
	return err
}

func orderPayload(order workforce.MaterialOrder) map[string]string {
	p := map[string]string{
		"orderId":   order.ID,
		"foreman":   order.ForemanName,
		"jobName":   order.JobName,
		"status":    string(order.Status),
		"itemCount": itoa(len(order.Items)),
	}
	if order.DeliveryDate != nil {
		p["deliveryDate"] = order.DeliveryDate.Format(payloadDateLayout)
	}
	return p
}
