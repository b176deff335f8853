package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/cosmetics-shop/internal/errs"
	"github.com/and161185/cosmetics-shop/internal/mailer"
	"github.com/and161185/cosmetics-shop/internal/model"
	"github.com/and161185/cosmetics-shop/internal/outbox"
	"github.com/and161185/cosmetics-shop/internal/repository"
)

// fanOut caps concurrent availability mails per trigger.
const fanOut = 8

// TriggerResult summarizes an availability fan-out.
type TriggerResult struct {
	Sent    int            `json:"notificationsSent"`
	Failed  int            `json:"notificationsFailed"`
	Product *model.Product `json:"-"`
}

// NotificationService manages back-in-stock subscriptions.
type NotificationService interface {
	// Request subscribes acc to an out-of-stock product.
	Request(ctx context.Context, acc *model.Account, productID uuid.UUID) (*model.ProductNotification, error)
	// Subscribe upserts the subscription without product checks.
	Subscribe(ctx context.Context, accountID, productID uuid.UUID, email string) (*model.ProductNotification, error)
	Cancel(ctx context.Context, accountID, productID uuid.UUID) error
	// Trigger mails every pending subscriber and marks them notified.
	Trigger(ctx context.Context, productID uuid.UUID) (TriggerResult, error)
	ListMine(ctx context.Context, accountID uuid.UUID) ([]model.NotificationView, error)
	ListForProduct(ctx context.Context, productID uuid.UUID, includeInactive bool) ([]model.ProductNotification, error)
}

// NotificationServiceImpl implements NotificationService.
type NotificationServiceImpl struct {
	subs     repository.NotificationRepository
	products repository.ProductRepository
	mails    *mailer.Renderer
	queue    outbox.Enqueuer
	log      *zap.Logger
	now      func() time.Time
}

// NewNotificationService constructs NotificationService.
func NewNotificationService(subs repository.NotificationRepository, products repository.ProductRepository,
	mails *mailer.Renderer, queue outbox.Enqueuer, log *zap.Logger) *NotificationServiceImpl {
	return &NotificationServiceImpl{subs: subs, products: products, mails: mails, queue: queue, log: log, now: time.Now}
}

// Request rejects unknown and in-stock products before subscribing.
func (s *NotificationServiceImpl) Request(ctx context.Context, acc *model.Account, productID uuid.UUID) (*model.ProductNotification, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errProductNotFound
		}
		return nil, err
	}
	if p.HasStock() {
		return nil, errs.Invalid("Product is currently in stock")
	}
	return s.Subscribe(ctx, acc.ID, p.ID, acc.Email)
}

// Subscribe is idempotent per (account, product).
func (s *NotificationServiceImpl) Subscribe(ctx context.Context, accountID, productID uuid.UUID, email string) (*model.ProductNotification, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	return s.subs.Upsert(ctx, &model.ProductNotification{
		ID:        id,
		AccountID: accountID,
		ProductID: productID,
		Email:     NormalizeEmail(email),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Cancel deactivates the subscription.
func (s *NotificationServiceImpl) Cancel(ctx context.Context, accountID, productID uuid.UUID) error {
	err := s.subs.Deactivate(ctx, accountID, productID)
	if errors.Is(err, errs.ErrNotFound) {
		return errs.With(errs.ErrNotFound, "Notification request not found")
	}
	return err
}

// Trigger queues one availability mail per pending subscriber. A failed recipient is
// counted and does not stop the others; every loaded row is marked notified afterwards.
func (s *NotificationServiceImpl) Trigger(ctx context.Context, productID uuid.UUID) (TriggerResult, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return TriggerResult{}, errProductNotFound
		}
		return TriggerResult{}, err
	}
	pending, err := s.subs.ListPending(ctx, productID)
	if err != nil {
		return TriggerResult{}, err
	}
	res := TriggerResult{Product: p}
	if len(pending) == 0 {
		return res, nil
	}

	var sent, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOut)
	for _, n := range pending {
		n := n
		g.Go(func() error {
			m, err := s.mails.ProductAvailability(p, n.Email)
			if err == nil {
				err = s.queue.Enqueue(gctx, m)
			}
			if err != nil {
				failed.Add(1)
				s.log.Warn("availability mail not queued", zap.String("to", n.Email), zap.Error(err))
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	ids := make([]uuid.UUID, len(pending))
	for i, n := range pending {
		ids[i] = n.ID
	}
	if err := s.subs.MarkNotified(ctx, ids, s.now().UTC()); err != nil {
		return TriggerResult{}, err
	}
	res.Sent, res.Failed = int(sent.Load()), int(failed.Load())
	s.log.Info("availability notifications queued",
		zap.String("product", p.Name), zap.Int("sent", res.Sent), zap.Int("failed", res.Failed))
	return res, nil
}

// ListMine returns active subscriptions with product summaries.
func (s *NotificationServiceImpl) ListMine(ctx context.Context, accountID uuid.UUID) ([]model.NotificationView, error) {
	return s.subs.ListActiveByAccount(ctx, accountID)
}

// ListForProduct returns a product's subscriptions.
func (s *NotificationServiceImpl) ListForProduct(ctx context.Context, productID uuid.UUID, includeInactive bool) ([]model.ProductNotification, error) {
	return s.subs.ListByProduct(ctx, productID, includeInactive)
}
