// Package graph implements a Sender that delivers raw messages via the
// Microsoft Graph API using OAuth2 client credentials authentication.
package graph

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shineum/mail-forwarder-lite/internal/message"
)

// SenderConfig holds the configuration for creating a Sender.
type SenderConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// Sender delivers raw messages via the Graph sendMail endpoint in MIME
// format: the message bytes are base64-encoded and posted as text/plain.
// Recipient headers are rewritten to the resolved targets first; all
// other headers go out exactly as assembled.
type Sender struct {
	graphURLBase string
	httpClient   *http.Client
	token        *tokenCache
}

// New creates a new Sender with the given configuration.
func New(cfg SenderConfig) *Sender {
	tokenURL := fmt.Sprintf(
		"https://login.microsoftonline.com/%s/oauth2/v2.0/token",
		cfg.TenantID,
	)

	client := &http.Client{Timeout: 30 * time.Second}

	return &Sender{
		graphURLBase: "https://graph.microsoft.com/v1.0",
		httpClient:   client,
		token:        newTokenCache(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
	}
}

// newWithOverrides creates a Sender with custom URLs and HTTP client,
// used for testing.
func newWithOverrides(cfg SenderConfig, graphURLBase, tokenURL string, client *http.Client) *Sender {
	return &Sender{
		graphURLBase: graphURLBase,
		httpClient:   client,
		token:        newTokenCache(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
	}
}

// Send delivers the raw message in a single attempt. Graph's MIME-format
// sendMail takes its recipients from the message's address headers, so
// those are rewritten to the resolved targets before encoding. A 401
// response triggers one token refresh and an immediate re-send (auth
// recovery, not a delivery retry); any other failure is reported to the
// caller.
func (g *Sender) Send(ctx context.Context, targets []string, source string, raw []byte) error {
	addressed, err := addressToTargets(raw, targets)
	if err != nil {
		return fmt.Errorf("failed to address message: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(addressed)
	sendURL := fmt.Sprintf("%s/users/%s/sendMail", g.graphURLBase, source)

	err = g.doSendRequest(ctx, sendURL, encoded)
	if err == nil {
		return nil
	}

	if sendErr, ok := err.(*sendError); ok && sendErr.statusCode == http.StatusUnauthorized {
		slog.Info("refreshing Graph API token after 401")
		if _, refreshErr := g.token.ForceRefresh(); refreshErr != nil {
			return fmt.Errorf("token refresh failed: %w", refreshErr)
		}
		return g.doSendRequest(ctx, sendURL, encoded)
	}

	return err
}

// Name returns the transport name.
func (g *Sender) Name() string {
	return "msgraph"
}

// addressToTargets replaces the message's recipient headers with the
// resolved targets. Graph delivers MIME-format sendMail to the addresses
// in To/Cc/Bcc; leaving the original recipients there would send the copy
// back to the controlled domain instead of to the forwarding targets.
func addressToTargets(raw []byte, targets []string) ([]byte, error) {
	msg, err := message.Parse(raw)
	if err != nil {
		return nil, err
	}

	toLine := "To: " + strings.Join(targets, ", ")
	var lines []string
	placed := false

	for _, h := range msg.Headers {
		switch strings.ToLower(h.Name) {
		case "to":
			if !placed {
				lines = append(lines, toLine)
				placed = true
			}
		case "cc", "bcc":
			// Dropped: delivery goes to the resolved targets only.
		default:
			lines = append(lines, h.Raw...)
		}
	}
	if !placed {
		lines = append(lines, toLine)
	}

	return message.Assemble(lines, msg.Body, msg.CRLF), nil
}

// doSendRequest performs a single HTTP request to the sendMail endpoint.
func (g *Sender) doSendRequest(ctx context.Context, sendURL, encodedMIME string) error {
	token, err := g.token.Token()
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, bytes.NewReader([]byte(encodedMIME)))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	// HTTP 202 Accepted is success for sendMail
	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	return classifyError(resp.StatusCode, string(body))
}

// sendError represents an error from the Graph sendMail operation. The
// permanent flag only informs error text; the sender never retries.
type sendError struct {
	message    string
	statusCode int
	permanent  bool
}

func (e *sendError) Error() string {
	kind := "transient"
	if e.permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("Graph API %s error (HTTP %d): %s", kind, e.statusCode, e.message)
}

// classifyError categorizes an HTTP error response.
func classifyError(statusCode int, message string) *sendError {
	err := &sendError{
		message:    message,
		statusCode: statusCode,
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusTooManyRequests:
	case statusCode >= 500:
	default:
		err.permanent = true
	}

	return err
}
