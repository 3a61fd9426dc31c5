// Package dispatch talks to the campaign dispatch service that owns in-flight
// automation sequences.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"crm_automation_backend/platform/config"
	"crm_automation_backend/platform/logger"

	"github.com/google/uuid"
)

// StopAck is the dispatch service's confirmation that a lead's automation
// has been halted.
type StopAck struct {
	LeadID         uuid.UUID `json:"leadId"`
	AlreadyStopped bool      `json:"alreadyStopped"`
	StoppedAt      time.Time `json:"stoppedAt"`
}

// StatusError is a non-2xx reply from the dispatch service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dispatch service returned %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the same request may succeed later.
func (e *StatusError) Transient() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// IsTransient classifies an error from StopLead. Network failures and
// timeouts are transient; client errors are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, errMalformedAck)
}

var errMalformedAck = errors.New("malformed dispatch acknowledgement")

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
	now     func() time.Time
}

type stopRequest struct {
	LeadID string `json:"leadId"`
	Reason string `json:"reason"`
}

type stopResponse struct {
	AlreadyStopped bool       `json:"alreadyStopped"`
	StoppedAt      *time.Time `json:"stoppedAt"`
}

func NewClient(cfg config.DispatchConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.GetDispatchURL(), "/"),
		apiKey:  cfg.GetDispatchAPIKey(),
		http:    &http.Client{Timeout: cfg.GetDispatchTimeout()},
		log:     log,
		now:     time.Now,
	}
}

// StopLead makes a single stop attempt. Retrying is the caller's concern.
func (c *Client) StopLead(ctx context.Context, leadID uuid.UUID, reason string) (StopAck, error) {
	body, err := json.Marshal(stopRequest{LeadID: leadID.String(), Reason: reason})
	if err != nil {
		return StopAck{}, fmt.Errorf("marshal stop payload: %w", err)
	}

	url := fmt.Sprintf("%s/automation/stop", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return StopAck{}, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return StopAck{}, fmt.Errorf("dispatch stop request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return StopAck{}, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	ack := StopAck{LeadID: leadID, StoppedAt: c.now().UTC()}
	if len(bytes.TrimSpace(data)) > 0 {
		var parsed stopResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			return StopAck{}, fmt.Errorf("%w: %v", errMalformedAck, err)
		}
		ack.AlreadyStopped = parsed.AlreadyStopped
		if parsed.StoppedAt != nil {
			ack.StoppedAt = parsed.StoppedAt.UTC()
		}
	}

	c.log.Debug("dispatch stop acknowledged", "lead_id", leadID, "already_stopped", ack.AlreadyStopped)
	return ack, nil
}
