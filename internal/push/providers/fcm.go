package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/tbourn/go-chat-push/internal/domain"
	"github.com/tbourn/go-chat-push/internal/push"
)

// ErrInvalidCredentials is returned when a service-account document is not
// usable for FCM.
var ErrInvalidCredentials = errors.New("invalid FCM service account credentials")

// ServiceAccount is the subset of a Google service-account key FCM needs.
type ServiceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
}

// ParseServiceAccount decodes raw and checks the fields FCM requires.
func ParseServiceAccount(raw []byte) (*ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	var missing []string
	if strings.TrimSpace(sa.ProjectID) == "" {
		missing = append(missing, "project_id")
	}
	if strings.TrimSpace(sa.PrivateKey) == "" {
		missing = append(missing, "private_key")
	}
	if strings.TrimSpace(sa.ClientEmail) == "" {
		missing = append(missing, "client_email")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidCredentials, strings.Join(missing, ", "))
	}
	return &sa, nil
}

// LoadCredentials returns the service-account JSON from inline, or from the
// file at path when inline is empty. Both empty yields push.ErrFCMNotConfigured.
func LoadCredentials(path, inline string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if strings.TrimSpace(path) == "" {
		return nil, push.ErrFCMNotConfigured
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read FCM credentials: %w", err)
	}
	return b, nil
}

// messagingClient is the part of *messaging.Client the provider uses.
type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCM sends notifications through Firebase Cloud Messaging.
type FCM struct {
	client    messagingClient
	ProjectID string
}

// NewFCM builds an FCM provider from service-account JSON.
func NewFCM(ctx context.Context, credentials []byte) (*FCM, error) {
	if len(credentials) == 0 {
		return nil, push.ErrFCMNotConfigured
	}
	sa, err := ParseServiceAccount(credentials)
	if err != nil {
		return nil, err
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: sa.ProjectID}, option.WithCredentialsJSON(credentials))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return &FCM{client: client, ProjectID: sa.ProjectID}, nil
}

// Send delivers msg to a single device token.
func (f *FCM) Send(ctx context.Context, msg push.MobileMessage) (push.DeliveryID, error) {
	id, err := f.client.Send(ctx, fcmMessage(msg))
	if err != nil {
		return "", fcmError(err)
	}
	return push.DeliveryID(id), nil
}

// fcmMessage converts a channel message into the SDK representation.
func fcmMessage(m push.MobileMessage) *messaging.Message {
	out := &messaging.Message{
		Token: m.Token,
		Notification: &messaging.Notification{
			Title:    m.Title,
			Body:     m.Body,
			ImageURL: m.ImageURL,
		},
		Data: m.Data,
	}
	if a := m.Android; a != nil {
		out.Android = &messaging.AndroidConfig{
			Priority: a.Priority,
			Notification: &messaging.AndroidNotification{
				Sound:     a.Sound,
				ChannelID: a.ChannelID,
				Tag:       a.Tag,
			},
		}
	}
	if a := m.APNS; a != nil {
		badge := a.Badge
		out.APNS = &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound:            a.Sound,
					Badge:            &badge,
					ContentAvailable: a.ContentAvailable,
					Category:         a.Category,
					ThreadID:         a.ThreadID,
				},
			},
		}
		if m.Platform == domain.PlatformIOS {
			out.APNS.Headers = map[string]string{"apns-priority": "10"}
		}
	}
	return out
}

// fcmError maps SDK errors to a *push.ProviderError with a stable code.
func fcmError(err error) error {
	perr := &push.ProviderError{Code: push.CodeUnknown, Err: err}
	switch {
	case messaging.IsUnregistered(err):
		perr.Code = push.CodeTokenNotRegistered
	case strings.Contains(err.Error(), push.CodeInvalidRegistrationToken):
		perr.Code = push.CodeInvalidRegistrationToken
	case errorutils.IsInvalidArgument(err):
		perr.Code = push.CodeInvalidArgument
	}
	if resp := errorutils.HTTPResponse(err); resp != nil {
		perr.StatusCode = resp.StatusCode
	}
	return perr
}
