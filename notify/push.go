// Package notify sends web push notifications to story owners when other users
// like or bookmark their stories.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"storyreel/models"

	"github.com/SherClockHolmes/webpush-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrNoSubscription = errors.New("no push subscription")

// Subscription is the browser push endpoint registered by a user. A user has at
// most one; registering again replaces it.
type Subscription struct {
	ID     primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	UserID primitive.ObjectID   `bson:"userId" json:"userId"`
	Sub    webpush.Subscription `bson:"sub" json:"sub"`
}

type SubscriptionStore interface {
	Save(ctx context.Context, sub Subscription) error
	// FindByUser returns ErrNoSubscription when the user has not subscribed.
	FindByUser(ctx context.Context, userID primitive.ObjectID) (*Subscription, error)
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) error
}

// SendFunc delivers one payload; webpush.SendNotification in production.
type SendFunc func(message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error)

type PusherConfig struct {
	PublicKey  string
	PrivateKey string
	Subject    string
	TTL        int
	Timeout    time.Duration
}

// Pusher delivers notifications in the background. Wait blocks until every
// in-flight delivery has finished.
type Pusher struct {
	store SubscriptionStore
	cfg   PusherConfig
	send  SendFunc
	wg    sync.WaitGroup
}

func NewPusher(store SubscriptionStore, cfg PusherConfig) *Pusher {
	if cfg.TTL <= 0 {
		cfg.TTL = 30
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Pusher{store: store, cfg: cfg, send: webpush.SendNotification}
}

// WithSender replaces the delivery function.
func (p *Pusher) WithSender(send SendFunc) *Pusher {
	p.send = send
	return p
}

func (p *Pusher) PublicKey() string {
	return p.cfg.PublicKey
}

// Subscribe stores or replaces the push endpoint of userID.
func (p *Pusher) Subscribe(ctx context.Context, userID primitive.ObjectID, sub webpush.Subscription) error {
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		return fmt.Errorf("subscription endpoint and keys are required")
	}
	return p.store.Save(ctx, Subscription{
		ID:     primitive.NewObjectID(),
		UserID: userID,
		Sub:    sub,
	})
}

// NotifyEngagement tells owner that actor liked or bookmarked story. Engagement
// with one's own story is not announced.
func (p *Pusher) NotifyEngagement(owner, actor primitive.ObjectID, story models.Story, kind models.Engagement) {
	if owner == actor {
		return
	}
	title := "Someone liked your story"
	if kind == models.EngagementBookmark {
		title = "Someone bookmarked your story"
	}
	p.Send(owner, Payload{
		Title: title,
		Body:  story.Heading,
		Data: map[string]any{
			"storyId":   story.ID.Hex(),
			"kind":      kind,
			"timestamp": time.Now().Unix(),
		},
	})
}

type Payload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Icon  string         `json:"icon,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// Send delivers payload to userID asynchronously.
func (p *Pusher) Send(userID primitive.ObjectID, payload Payload) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("[Push] panic while sending notification", slog.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
		defer cancel()
		if err := p.deliver(ctx, userID, payload); err != nil && !errors.Is(err, ErrNoSubscription) {
			slog.Warn("[Push] failed to send notification",
				slog.String("user_id", userID.Hex()),
				slog.Any("error", err),
			)
		}
	}()
}

func (p *Pusher) deliver(ctx context.Context, userID primitive.ObjectID, payload Payload) error {
	sub, err := p.store.FindByUser(ctx, userID)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	resp, err := p.send(body, &sub.Sub, &webpush.Options{
		Subscriber:      p.cfg.Subject,
		VAPIDPublicKey:  p.cfg.PublicKey,
		VAPIDPrivateKey: p.cfg.PrivateKey,
		TTL:             p.cfg.TTL,
	})
	if resp != nil {
		defer resp.Body.Close()
	}
	if resp != nil && resp.StatusCode == http.StatusGone {
		slog.Info("[Push] subscription expired, deleting", slog.String("user_id", userID.Hex()))
		if delErr := p.store.DeleteByUser(ctx, userID); delErr != nil {
			return fmt.Errorf("delete expired subscription: %w", delErr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	if resp != nil && resp.StatusCode >= 400 {
		return fmt.Errorf("push service responded %d", resp.StatusCode)
	}
	slog.Debug("[Push] notification sent", slog.String("user_id", userID.Hex()))
	return nil
}

// Wait blocks until all pending deliveries are done.
func (p *Pusher) Wait() {
	p.wg.Wait()
}
