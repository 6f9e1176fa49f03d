package notify

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
)

// SubscriptionSource looks up the stored push registration for a user.
// Returns sql.ErrNoRows when the user never subscribed.
type SubscriptionSource interface {
	GetPushSubscription(userID string) (string, error)
}

// SendFunc matches webpush.SendNotification so tests can intercept sends.
type SendFunc func(message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error)

// Dispatcher sends a web-push message to an order's owner when the order
// reaches its terminal status. Dispatch is strictly best-effort: every
// failure is logged and swallowed, since the status update it follows has
// already committed.
type Dispatcher struct {
	subscriptions   SubscriptionSource
	logger          *zap.Logger
	vapidPublicKey  string
	vapidPrivateKey string
	subscriber      string
	send            SendFunc
}

type DispatcherConfig struct {
	Subscriptions   SubscriptionSource
	Logger          *zap.Logger
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// Subscriber is the contact address claimed in the VAPID JWT,
	// usually a mailto: URL.
	Subscriber string
	// Send overrides the webpush delivery call. Nil means the real one.
	Send SendFunc
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	send := cfg.Send
	if send == nil {
		send = webpush.SendNotification
	}
	return &Dispatcher{
		subscriptions:   cfg.Subscriptions,
		logger:          cfg.Logger,
		vapidPublicKey:  cfg.VAPIDPublicKey,
		vapidPrivateKey: cfg.VAPIDPrivateKey,
		subscriber:      cfg.Subscriber,
		send:            send,
	}
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// OrderCompleted notifies the owner that their order is ready for
// collection. Users without a stored subscription are skipped silently.
func (d *Dispatcher) OrderCompleted(userID, fileName string) {
	stored, err := d.subscriptions.GetPushSubscription(userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			d.logger.Debug("no push subscription for user", zap.String("user_id", userID))
			return
		}
		d.logger.Warn("push subscription lookup failed",
			zap.String("user_id", userID), zap.Error(err))
		return
	}

	var subscription webpush.Subscription
	if err := json.Unmarshal([]byte(stored), &subscription); err != nil {
		d.logger.Warn("stored push subscription is not valid JSON",
			zap.String("user_id", userID), zap.Error(err))
		return
	}

	message, err := json.Marshal(pushPayload{
		Title: "Your order is ready! 🎉",
		Body:  fmt.Sprintf("Your order %q is now ready for collection. Please visit the reprography office to collect your prints.", fileName),
	})
	if err != nil {
		d.logger.Warn("failed to encode push payload", zap.Error(err))
		return
	}

	resp, err := d.send(message, &subscription, &webpush.Options{
		Subscriber:      d.subscriber,
		VAPIDPublicKey:  d.vapidPublicKey,
		VAPIDPrivateKey: d.vapidPrivateKey,
		TTL:             60,
	})
	if err != nil {
		d.logger.Warn("push notification delivery failed",
			zap.String("user_id", userID), zap.Error(err))
		return
	}
	resp.Body.Close()

	d.logger.Info("push notification dispatched",
		zap.String("user_id", userID), zap.String("file_name", fileName))
}
