package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"campusvote/config"
	"campusvote/models"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// maxConcurrentPushes bounds in-flight APNs requests per broadcast
const maxConcurrentPushes = 8

type pusher interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// APNSNotifier sends a silent refresh to every voter device when an election
// changes status.
type APNSNotifier struct {
	db     *gorm.DB
	client pusher
	topic  string
	logger *slog.Logger
}

// NewAPNSNotifier builds a token-based APNs client from a .p8 key.
func NewAPNSNotifier(cfg config.APNSConfig, conn *gorm.DB, logger *slog.Logger) (*APNSNotifier, error) {
	bytes, err := os.ReadFile(cfg.AuthKeyPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read APNs key file: %w", err)
	}
	authKey, err := token.AuthKeyFromBytes(bytes)
	if err != nil {
		return nil, fmt.Errorf("unable to load APNs key: %w", err)
	}
	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("APNs client initialized", "production", cfg.Production)
	return &APNSNotifier{db: conn, client: client, topic: cfg.Topic, logger: logger}, nil
}

// ElectionChanged pushes the new election status to every registered device.
func (n *APNSNotifier) ElectionChanged(ctx context.Context, election models.Election, action models.ElectionAction) error {
	var tokens []string
	err := n.db.WithContext(ctx).Model(&models.Voter{}).
		Where("device_token <> ''").
		Distinct().
		Pluck("device_token", &tokens).Error
	if err != nil {
		return fmt.Errorf("failed to load device tokens: %w", err)
	}

	var (
		mu       sync.Mutex
		failures []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPushes)
	for _, deviceToken := range tokens {
		g.Go(func() error {
			if err := n.sendRefresh(gctx, deviceToken, election, action); err != nil {
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	n.logger.Info("election refresh pushed",
		"election_id", election.ID,
		"action", action,
		"devices", len(tokens),
		"failed", len(failures),
	)
	return errors.Join(failures...)
}

func (n *APNSNotifier) sendRefresh(ctx context.Context, deviceToken string, election models.Election, action models.ElectionAction) error {
	p := payload.NewPayload()
	p.ContentAvailable()
	p.Custom("refresh", "election")
	p.Custom("electionId", election.ID)
	p.Custom("status", string(election.Status))
	p.Custom("action", string(action))

	res, err := n.client.PushWithContext(ctx, &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       n.topic,
		Payload:     p,
		Priority:    apns2.PriorityLow,
		PushType:    apns2.PushTypeBackground,
		Expiration:  time.Now().Add(time.Hour),
	})
	if err != nil {
		return fmt.Errorf("failed to send silent notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("silent notification failed with status %d: %s", res.StatusCode, res.Reason)
	}
	return nil
}
