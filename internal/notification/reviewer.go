package notification

import (
	"context"
	"fmt"
	"strconv"

	authrepo "client-update-agent/internal/auth/repository"
	"client-update-agent/pkg/fcm"

	"go.uber.org/zap"
)

// PushSender is the subset of *fcm.Client used here.
type PushSender interface {
	SendToDevices(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]string, error)
}

// ReviewerNotifier pushes a notice to every registered device of a tenant
// when new drafts are waiting for review.
type ReviewerNotifier struct {
	devices     authrepo.DeviceTokenRepository
	push        PushSender
	frontendURL string
	log         *zap.Logger
}

func NewReviewerNotifier(devices authrepo.DeviceTokenRepository, push PushSender, frontendURL string, log *zap.Logger) *ReviewerNotifier {
	return &ReviewerNotifier{
		devices:     devices,
		push:        push,
		frontendURL: frontendURL,
		log:         log,
	}
}

func (n *ReviewerNotifier) NotifyDrafts(ctx context.Context, tenantID string, count int) error {
	if count == 0 {
		return nil
	}
	tokens, err := n.devices.GetTokensByTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	values := make([]string, 0, len(tokens))
	for _, t := range tokens {
		values = append(values, t.Token)
	}

	body := "1 client update is ready for review"
	if count > 1 {
		body = fmt.Sprintf("%d client updates are ready for review", count)
	}
	failed, err := n.push.SendToDevices(ctx, values, fcm.NotificationData{
		Title: "New drafts to review",
		Body:  body,
		Data: map[string]string{
			"type":  "drafts_ready",
			"count": strconv.Itoa(count),
		},
		Link: n.frontendURL + "/pending-updates",
	})
	if err != nil {
		return err
	}

	if len(failed) > 0 {
		n.log.Info("Removing stale device tokens",
			zap.String("tenant_id", tenantID),
			zap.Int("count", len(failed)),
		)
		if err := n.devices.DeleteTokens(ctx, failed); err != nil {
			n.log.Warn("Failed to remove stale device tokens", zap.Error(err))
		}
	}
	return nil
}
