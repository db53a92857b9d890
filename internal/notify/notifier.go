// Package notify implements the Notifier sub-component of the User &
// Token Store tier (spec.md §2/§4.5.2 step 9): fanning a published-post
// event out to every device token registered for its owner. No
// push-specific library appears anywhere in the example pack (only a
// standalone Twitter-notify file under other_examples/, not an
// importable FCM/APNs SDK), so this is built on plain net/http in the
// same request-building style as internal/twitter/client.go.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vouse/postqueue/internal/domain/user"
)

// Sender delivers one push payload to one platform's push gateway.
// Split from Notifier so each platform's wire format stays isolated.
type Sender interface {
	Send(ctx context.Context, token, title, body string) error
}

// Notifier fans a notification out across every device token owned by
// a user. Delivery failures are swallowed per spec.md §7 — "push
// delivery failures are swallowed at the Post layer; failed device
// tokens are pruned out-of-band" — so a failed send to one device is
// logged and skipped. NotifyPublished returns an error only when the
// user's device list cannot be loaded.
type Notifier struct {
	devices   DeviceLister
	senders   map[user.DevicePlatform]Sender
	logger    *logrus.Entry
}

// DeviceLister is the narrow view onto the user domain this package
// needs: which tokens to fan out to.
type DeviceLister interface {
	ListDevices(ctx context.Context, userID string) ([]*user.DeviceToken, error)
}

func NewNotifier(devices DeviceLister, senders map[user.DevicePlatform]Sender, logger *logrus.Entry) *Notifier {
	return &Notifier{devices: devices, senders: senders, logger: logger}
}

// NotifyPublished satisfies internal/scheduler's Notifier interface.
func (n *Notifier) NotifyPublished(ctx context.Context, userID, postID string) error {
	tokens, err := n.devices.ListDevices(ctx, userID)
	if err != nil {
		return err
	}
	for _, d := range tokens {
		sender, ok := n.senders[d.Platform()]
		if !ok {
			continue
		}
		if err := sender.Send(ctx, d.Token(), "Post published", fmt.Sprintf("Your post %s is now live", postID)); err != nil {
			n.logger.WithError(err).WithField("token", d.Token()).WithField("platform", d.Platform()).
				Warn("notify: push delivery failed, token may need pruning")
		}
	}
	return nil
}

// FCMSender delivers to Android and Web platforms via Firebase Cloud
// Messaging's HTTP v1 endpoint.
type FCMSender struct {
	projectID  string
	httpClient *http.Client
	authToken  func(ctx context.Context) (string, error)
}

func NewFCMSender(projectID string, authToken func(ctx context.Context) (string, error)) *FCMSender {
	return &FCMSender{
		projectID:  projectID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		authToken:  authToken,
	}
}

func (s *FCMSender) Send(ctx context.Context, token, title, body string) error {
	accessToken, err := s.authToken(ctx)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"message": map[string]interface{}{
			"token": token,
			"notification": map[string]string{
				"title": title,
				"body":  body,
			},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", s.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: fcm send failed with status %d", resp.StatusCode)
	}
	return nil
}

// APNsSender delivers to iOS via Apple's HTTP/2 APNs gateway.
type APNsSender struct {
	topic      string
	httpClient *http.Client
	authToken  func(ctx context.Context) (string, error)
}

func NewAPNsSender(topic string, authToken func(ctx context.Context) (string, error)) *APNsSender {
	return &APNsSender{
		topic:      topic,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		authToken:  authToken,
	}
}

func (s *APNsSender) Send(ctx context.Context, token, title, body string) error {
	accessToken, err := s.authToken(ctx)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"aps": map[string]interface{}{
			"alert": map[string]string{"title": title, "body": body},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("https://api.push.apple.com/3/device/%s", token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("authorization", "bearer "+accessToken)
	req.Header.Set("apns-topic", s.topic)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: apns send failed with status %d", resp.StatusCode)
	}
	return nil
}
