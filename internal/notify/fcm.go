package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2/google"
)

const (
	fcmScope          = "https://www.googleapis.com/auth/firebase.messaging"
	defaultFCMBaseURL = "https://fcm.googleapis.com"
)

// FCMGateway sends data messages through the FCM HTTP v1 API.
type FCMGateway struct {
	project string
	client  *http.Client
	baseURL string
}

// NewFCMGateway authenticates with Google application default credentials.
// An empty projectID disables push.
func NewFCMGateway(ctx context.Context, projectID string) (PushGateway, error) {
	if projectID == "" {
		return NoopGateway{}, nil
	}
	client, err := google.DefaultClient(ctx, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("google credentials: %w", err)
	}
	return NewFCMGatewayWithClient(projectID, client, defaultFCMBaseURL), nil
}

// NewFCMGatewayWithClient uses an already authorised client.
func NewFCMGatewayWithClient(projectID string, client *http.Client, baseURL string) *FCMGateway {
	return &FCMGateway{project: projectID, client: client, baseURL: baseURL}
}

type fcmRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token string            `json:"token,omitempty"`
	Topic string            `json:"topic,omitempty"`
	Data  map[string]string `json:"data"`
}

type fcmErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

func (g *FCMGateway) SendDevice(ctx context.Context, token string, data map[string]string) error {
	return g.send(ctx, fcmMessage{Token: token, Data: data})
}

func (g *FCMGateway) SendTopic(ctx context.Context, topic string, data map[string]string) error {
	return g.send(ctx, fcmMessage{Topic: topic, Data: data})
}

func (g *FCMGateway) send(ctx context.Context, msg fcmMessage) error {
	body, err := json.Marshal(fcmRequest{Message: msg})
	if err != nil {
		return fmt.Errorf("encode fcm message: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", g.baseURL, g.project)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("fcm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var fe fcmErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&fe)
	if msg.Token != "" && tokenRejected(resp.StatusCode, fe) {
		return fmt.Errorf("%w: %s", ErrTokenInvalid, fe.Error.Status)
	}
	return fmt.Errorf("fcm send: status %d: %s", resp.StatusCode, fe.Error.Message)
}

func tokenRejected(status int, fe fcmErrorResponse) bool {
	if status == http.StatusNotFound {
		return true
	}
	for _, d := range fe.Error.Details {
		switch d.ErrorCode {
		case "UNREGISTERED", "INVALID_ARGUMENT":
			return true
		}
	}
	return false
}

// NoopGateway drops every push. Used when FCM is not configured.
type NoopGateway struct{}

func (NoopGateway) SendDevice(context.Context, string, map[string]string) error { return nil }
func (NoopGateway) SendTopic(context.Context, string, map[string]string) error  { return nil }
