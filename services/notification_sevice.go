package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"github.com/techagentng/collabhub/db"
	"github.com/techagentng/collabhub/metrics"
	"github.com/techagentng/collabhub/models"
)

const (
	TypeMessageNotification = "notification:message"
	NotificationQueue       = "notifications"

	pushBodyLimit = 140
)

// Notifier queues a push notification about a committed message.
type Notifier interface {
	NotifyMessage(ctx context.Context, n models.MessageNotification) error
}

// AsynqNotifier hands notifications to the worker through Redis.
type AsynqNotifier struct {
	client *asynq.Client
}

func NewAsynqNotifier(redisURL string) (*AsynqNotifier, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	return &AsynqNotifier{client: asynq.NewClient(opt)}, nil
}

func (a *AsynqNotifier) NotifyMessage(ctx context.Context, n models.MessageNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeMessageNotification, payload)
	_, err = a.client.EnqueueContext(ctx, task,
		asynq.Queue(NotificationQueue),
		asynq.MaxRetry(5),
		// one push per message even if the send is retried upstream
		asynq.TaskID(n.MessageID),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return err
	}
	return nil
}

func (a *AsynqNotifier) Close() error {
	return a.client.Close()
}

// PushSender delivers one notification to one device.
type PushSender interface {
	Send(ctx context.Context, deviceToken, title, body string, data map[string]string) error
	// IsUnregistered reports whether err means the token is no longer valid.
	IsUnregistered(err error) bool
}

type fcmSender struct {
	client *messaging.Client
}

// NewFCMSender sends through Firebase Cloud Messaging.
func NewFCMSender(ctx context.Context, app *firebase.App) (PushSender, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %v", err)
	}
	return &fcmSender{client: client}, nil
}

func (f *fcmSender) Send(ctx context.Context, deviceToken, title, body string, data map[string]string) error {
	message := &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}
	_, err := f.client.Send(ctx, message)
	return err
}

func (f *fcmSender) IsUnregistered(err error) bool {
	return messaging.IsRegistrationTokenNotRegistered(err)
}

// NotificationService registers devices and delivers queued message notifications.
type NotificationService struct {
	devices db.DeviceRepository
	users   db.UserRepository
	sender  PushSender
}

func NewNotificationService(devices db.DeviceRepository, users db.UserRepository, sender PushSender) *NotificationService {
	return &NotificationService{
		devices: devices,
		users:   users,
		sender:  sender,
	}
}

func (s *NotificationService) RegisterDevice(ctx context.Context, userID, token string) error {
	return s.devices.SaveDeviceToken(ctx, &models.DeviceToken{Token: token, UserID: userID})
}

// HandleMessageNotification is the asynq handler for TypeMessageNotification.
func (s *NotificationService) HandleMessageNotification(ctx context.Context, task *asynq.Task) error {
	var n models.MessageNotification
	if err := json.Unmarshal(task.Payload(), &n); err != nil {
		return fmt.Errorf("decode notification: %v: %w", err, asynq.SkipRetry)
	}
	return s.Deliver(ctx, n)
}

// Deliver pushes n to every registered device of the recipient. Tokens the push
// service reports as unregistered are removed.
func (s *NotificationService) Deliver(ctx context.Context, n models.MessageNotification) error {
	tokens, err := s.devices.ListDeviceTokens(ctx, n.RecipientID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	title := "New message"
	if sender, err := s.users.FindUserByID(ctx, n.SenderID); err == nil && sender.DisplayName != "" {
		title = sender.DisplayName
	}
	body := truncate(n.Body, pushBodyLimit)
	data := map[string]string{
		"conversation_id": n.ConversationID,
		"message_id":      n.MessageID,
		"sender_id":       n.SenderID,
	}

	var failed int
	for _, t := range tokens {
		err := s.sender.Send(ctx, t.Token, title, body, data)
		switch {
		case err == nil:
			metrics.PushNotifications.WithLabelValues("ok").Inc()
		case s.sender.IsUnregistered(err):
			metrics.PushNotifications.WithLabelValues("unregistered").Inc()
			if err := s.devices.DeleteDeviceToken(ctx, t.Token); err != nil {
				log.Error().Err(err).Str("user_id", n.RecipientID).Msg("failed to remove stale device token")
			}
		default:
			failed++
			metrics.PushNotifications.WithLabelValues("error").Inc()
			log.Error().Err(err).Str("user_id", n.RecipientID).Str("message_id", n.MessageID).Msg("push failed")
		}
	}
	if failed == len(tokens) {
		return fmt.Errorf("push to %s failed on all %d devices", n.RecipientID, failed)
	}
	return nil
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}
