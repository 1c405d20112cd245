// Package backend is the REST client for the practice-management API. It is
// the only place the scheduling core's collaborator contracts touch the wire.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"clinicsched/models"
)

const listPageSize = 100

// Client talks to the practice-management REST API. The bearer token arrives
// as explicit configuration; the client never reads ambient credential state.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Logger  *zap.Logger
}

// NewClient builds a client with a bounded request timeout.
func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
		Logger:  logger,
	}
}

// AvailableSlots queries the slot oracle for offered start times.
func (c *Client) AvailableSlots(ctx context.Context, providerID string, date models.DateOnly, durationMinutes int) ([]models.TimeOfDay, error) {
	q := url.Values{}
	q.Set("providerId", providerID)
	q.Set("date", date.String())
	q.Set("duration", strconv.Itoa(durationMinutes))

	var resp struct {
		AvailableSlots []string `json:"availableSlots"`
	}
	if err := c.get(ctx, "/api/appointments/available-slots", q, &resp); err != nil {
		return nil, err
	}

	slots := make([]models.TimeOfDay, 0, len(resp.AvailableSlots))
	for _, raw := range resp.AvailableSlots {
		t, err := models.ParseTimeOfDay(raw)
		if err != nil {
			c.Logger.Warn("skipping malformed slot from backend", zap.String("slot", raw), zap.Error(err))
			continue
		}
		slots = append(slots, t)
	}
	return slots, nil
}

// ListAppointments pages through the provider's appointments in [from, to].
func (c *Client) ListAppointments(ctx context.Context, providerID string, from, to models.DateOnly) ([]models.Appointment, error) {
	var all []models.Appointment
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("providerId", providerID)
		q.Set("dateFrom", from.String())
		q.Set("dateTo", to.String())
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(listPageSize))

		var resp struct {
			Appointments []models.Appointment `json:"appointments"`
		}
		if err := c.get(ctx, "/api/appointments", q, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Appointments...)
		if len(resp.Appointments) < listPageSize {
			return all, nil
		}
	}
}

// ProviderByID fetches the provider record for policy checks.
func (c *Client) ProviderByID(ctx context.Context, id string) (*models.Provider, error) {
	var provider models.Provider
	if err := c.get(ctx, "/api/providers/"+url.PathEscape(id), nil, &provider); err != nil {
		return nil, err
	}
	return &provider, nil
}

// CreateWaitlistEntry posts a new waitlist entry.
func (c *Client) CreateWaitlistEntry(ctx context.Context, entry models.WaitlistEntry) (*models.WaitlistEntry, error) {
	var created models.WaitlistEntry
	if err := c.send(ctx, http.MethodPost, "/api/waitlist", entry, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateAppointment submits a normalized appointment payload.
func (c *Client) CreateAppointment(ctx context.Context, payload models.AppointmentPayload) (*models.Appointment, error) {
	var created models.Appointment
	if err := c.send(ctx, http.MethodPost, "/api/appointments", payload, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateAppointment rewrites an existing appointment.
func (c *Client) UpdateAppointment(ctx context.Context, id string, payload models.AppointmentPayload) (*models.Appointment, error) {
	var updated models.Appointment
	if err := c.send(ctx, http.MethodPut, "/api/appointments/"+url.PathEscape(id), payload, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Ping reports backend reachability for the health monitor.
func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, "/api/health", nil, nil)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("backend returned %s: %s", resp.Status, apiErrorMessage(resp.Body))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response failed: %w", err)
	}
	return nil
}

// apiErrorMessage makes a best effort to extract the backend's error message.
func apiErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "no error detail"
	}
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &apiErr) == nil {
		if apiErr.Error != "" {
			return apiErr.Error
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return string(raw)
}
