package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Client calls the remote membership registry.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	log     zerolog.Logger
}

// New creates a client for the given base URL. The client carries no
// timeout: each flow serializes on its call and a dialog reset discards
// in-flight state without canceling the request.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{},
		log:     zerolog.New(os.Stdout).With().Timestamp().Str("component", "backend").Logger(),
	}
}

// request issues one call and returns the raw decoded body. An empty body
// decodes to nil. Non-2xx statuses come back as *APIError with the message
// taken from the body when present and the whole decoded body as payload.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, payload any) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("path", path).Msg("registry request failed")
		return nil, fmt.Errorf("registry request failed: %w", err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var raw json.RawMessage
	if len(bytes.TrimSpace(text)) > 0 {
		if err := json.Unmarshal(text, &raw); err != nil {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil, fmt.Errorf("decode response: %w", err)
			}
			raw = nil // error bodies may not be JSON; keep the status
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var decoded map[string]any
		if raw != nil && json.Unmarshal(raw, &decoded) == nil {
			apiErr.Payload = decoded
			if msg, ok := decoded["message"].(string); ok && msg != "" {
				apiErr.Message = msg
			}
		}
		c.log.Error().Int("status", resp.StatusCode).Str("path", path).Msg(apiErr.Message)
		return nil, apiErr
	}
	return raw, nil
}

// SearchFilter narrows a persons listing. Cedula and FullName are separate
// filters; callers never merge them in one query.
type SearchFilter struct {
	Cedula   string
	FullName string
	Page     int
	Limit    int
}

// SearchPersons lists registry records matching the filter.
func (c *Client) SearchPersons(ctx context.Context, f SearchFilter) (Page[Person], error) {
	q := url.Values{}
	if f.Cedula != "" {
		q.Set("cedula", f.Cedula)
	}
	if f.FullName != "" {
		q.Set("nombreCompleto", f.FullName)
	}
	if f.Page > 0 {
		q.Set("currentPage", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	raw, err := c.request(ctx, http.MethodGet, "/personas", q, nil)
	if err != nil {
		return Page[Person]{}, err
	}
	return decodePage[Person](raw), nil
}

// CreatePerson registers a new person and returns the created record.
func (c *Client) CreatePerson(ctx context.Context, in CreatePersonInput) (Person, error) {
	raw, err := c.request(ctx, http.MethodPost, "/personas", nil, in)
	if err != nil {
		return Person{}, err
	}
	var p Person
	if err := unwrapObject(raw, &p); err != nil {
		return Person{}, fmt.Errorf("decode persona: %w", err)
	}
	return p, nil
}

// Activities lists every scheduled activity.
func (c *Client) Activities(ctx context.Context) ([]Activity, error) {
	raw, err := c.request(ctx, http.MethodGet, "/actividades", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[Activity](raw), nil
}

// CreateActivity schedules a new activity.
func (c *Client) CreateActivity(ctx context.Context, in CreateActivityInput) (Activity, error) {
	if in.Titulo == "" {
		return Activity{}, errors.New("titulo required")
	}
	if in.Fecha == "" {
		return Activity{}, errors.New("fecha required")
	}
	raw, err := c.request(ctx, http.MethodPost, "/actividades", nil, in)
	if err != nil {
		return Activity{}, err
	}
	var a Activity
	if err := unwrapObject(raw, &a); err != nil {
		return Activity{}, fmt.Errorf("decode actividad: %w", err)
	}
	return a, nil
}

// ActivitiesForDate lists the activities scheduled for the given local
// civil date (YYYY-MM-DD).
func (c *Client) ActivitiesForDate(ctx context.Context, fecha string) ([]Activity, error) {
	q := url.Values{}
	if fecha != "" {
		q.Set("fecha", fecha)
	}
	raw, err := c.request(ctx, http.MethodGet, "/actividades/semana", q, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[Activity](raw), nil
}

// MarkAttendance asks the backend to link the person to the activity. The
// backend treats the call as idempotent: a repeat mark reports
// registered=false instead of erroring.
func (c *Client) MarkAttendance(ctx context.Context, activityID, personID string) (Outcome, error) {
	if activityID == "" {
		return Outcome{}, errors.New("activity id required")
	}
	if personID == "" {
		return Outcome{}, errors.New("persona id required")
	}
	raw, err := c.request(ctx, http.MethodPost, "/actividades/"+activityID+"/asistir", nil, map[string]string{"personaId": personID})
	if err != nil {
		return Outcome{}, err
	}
	return decodeOutcome(raw), nil
}
