package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"social-chat/internal/logger"
	"social-chat/internal/models"
	"social-chat/internal/observability"
	"social-chat/internal/repositories"
)

const DefaultMaxDevices = 3

// Fanout persists notifications and forwards them to pub/sub and push.
// Only persistence errors reach the caller; delivery is best effort.
type Fanout struct {
	store      repositories.NotificationRepository
	pub        Publisher
	push       PushGateway
	maxDevices int
	log        *zap.Logger
	now        func() time.Time
}

func NewFanout(store repositories.NotificationRepository, pub Publisher, push PushGateway, maxDevices int, log *zap.Logger) *Fanout {
	if maxDevices <= 0 {
		maxDevices = DefaultMaxDevices
	}
	if push == nil {
		push = NoopGateway{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Fanout{store: store, pub: pub, push: push, maxDevices: maxDevices, log: log, now: time.Now}
}

// SendNotification notifies a single user: row, realtime event, then a push
// to each of the user's most recent devices in parallel.
func (f *Fanout) SendNotification(ctx context.Context, target int64, category Category, p Payload) error {
	ctx, span := otel.Tracer("social-chat/notify").Start(ctx, "notify.SendNotification")
	defer span.End()
	span.SetAttributes(attribute.Int64("notify.target", target), attribute.String("notify.category", string(category)))

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	n, err := f.persist(ctx, target, category, p, raw)
	if err != nil {
		return err
	}

	f.publish(ctx, Event{ID: n.ID, Targets: []int64{target}, Category: category, Subject: n.Subject, Payload: p, SentAt: f.now()})
	f.pushDevices(ctx, target, raw)
	return nil
}

// PublishTopic notifies every target: one row each, written as a single
// batch, then one realtime event and a single push to the category topic.
func (f *Fanout) PublishTopic(ctx context.Context, targets []int64, category Category, p Payload) error {
	ctx, span := otel.Tracer("social-chat/notify").Start(ctx, "notify.PublishTopic")
	defer span.End()
	span.SetAttributes(attribute.Int("notify.targets", len(targets)), attribute.String("notify.category", string(category)))

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	rows := make([]models.Notification, 0, len(targets))
	for _, target := range targets {
		rows = append(rows, notificationRow(target, category, p, raw))
	}
	if _, err := f.store.CreateBatch(ctx, rows); err != nil {
		return fmt.Errorf("persist notifications: %w", err)
	}

	f.publish(ctx, Event{Targets: targets, Category: category, Subject: p.SubjectKey(category), Payload: p, SentAt: f.now()})
	if err := f.push.SendTopic(ctx, string(category), pushData(raw)); err != nil {
		observability.IncPush(observability.PushFailed)
		logger.FromContext(ctx, f.log).Warn("topic push failed", zap.String("topic", string(category)), zap.Error(err))
	} else {
		observability.IncPush(observability.PushDelivered)
	}
	return nil
}

// Announce publishes a realtime event without a row or a push.
func (f *Fanout) Announce(ctx context.Context, targets []int64, category Category, p Payload) error {
	f.publish(ctx, Event{Targets: targets, Category: category, Subject: p.SubjectKey(category), Payload: p, SentAt: f.now()})
	return nil
}

func (f *Fanout) persist(ctx context.Context, target int64, category Category, p Payload, raw []byte) (models.Notification, error) {
	n, err := f.store.Create(ctx, notificationRow(target, category, p, raw))
	if err != nil {
		return models.Notification{}, fmt.Errorf("persist notification: %w", err)
	}
	return n, nil
}

func notificationRow(target int64, category Category, p Payload, raw []byte) models.Notification {
	return models.Notification{
		Target:   target,
		Category: string(category),
		Subject:  p.SubjectKey(category),
		Title:    p.Title,
		Message:  p.Message,
		Payload:  raw,
	}
}

func (f *Fanout) publish(ctx context.Context, ev Event) {
	if f.pub == nil {
		return
	}
	body, err := json.Marshal(ev)
	if err == nil {
		err = f.pub.Publish(ctx, Channel(ev.Category), body)
	}
	if err != nil {
		observability.IncPubSubPublishError()
		logger.FromContext(ctx, f.log).Warn("notification publish failed",
			zap.String("category", string(ev.Category)), zap.Error(err))
	}
}

func (f *Fanout) pushDevices(ctx context.Context, target int64, raw []byte) {
	devices, err := f.store.ListDevices(ctx, target, f.maxDevices)
	if err != nil {
		logger.FromContext(ctx, f.log).Warn("load push devices failed", zap.Int64("target", target), zap.Error(err))
		return
	}

	data := pushData(raw)
	var g errgroup.Group
	for _, d := range devices {
		d := d
		g.Go(func() error {
			f.pushDevice(ctx, d, data)
			return nil
		})
	}
	_ = g.Wait()
}

func (f *Fanout) pushDevice(ctx context.Context, d models.Device, data map[string]string) {
	err := f.push.SendDevice(ctx, d.FCMToken, data)
	switch {
	case err == nil:
		observability.IncPush(observability.PushDelivered)
	case errors.Is(err, ErrTokenInvalid):
		observability.IncPush(observability.PushPruned)
		if derr := f.store.DeleteDevice(ctx, d.FCMToken); derr != nil {
			logger.FromContext(ctx, f.log).Warn("prune device failed", zap.Int64("device_id", d.ID), zap.Error(derr))
			return
		}
		logger.FromContext(ctx, f.log).Info("pruned stale push device", zap.Int64("device_id", d.ID), zap.Int64("user_id", d.UserID))
	default:
		observability.IncPush(observability.PushFailed)
		logger.FromContext(ctx, f.log).Warn("push failed", zap.Int64("device_id", d.ID), zap.Error(err))
	}
}

func pushData(raw []byte) map[string]string {
	return map[string]string{"raw": string(raw)}
}
