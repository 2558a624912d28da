package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Session identifies a joined game session: the server-issued session id
// and this client's participant id
type Session struct {
	ID            string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
}

// Client talks to the lobby's REST surface: creating or joining a
// session and starting the game. The realtime stream is separate
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// NewClient creates a lobby client against the given base URL
func NewClient(baseURL string, log *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

type createRequest struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
}

// Create opens a new session, registering this client under a freshly
// minted participant id
func (c *Client) Create(ctx context.Context, name string) (Session, error) {
	req := createRequest{
		ParticipantID: uuid.NewString(),
		Name:          name,
	}
	var s Session
	if err := c.post(ctx, "/sessions", req, &s); err != nil {
		return Session{}, errors.Wrap(err, "create session")
	}
	if s.ParticipantID == "" {
		s.ParticipantID = req.ParticipantID
	}
	c.log.Info("session created",
		zap.String("session", s.ID), zap.String("participant", s.ParticipantID))
	return s, nil
}

// Join registers this client in an existing session
func (c *Client) Join(ctx context.Context, sessionID, name string) (Session, error) {
	req := createRequest{
		ParticipantID: uuid.NewString(),
		Name:          name,
	}
	var s Session
	path := fmt.Sprintf("/sessions/%s/join", sessionID)
	if err := c.post(ctx, path, req, &s); err != nil {
		return Session{}, errors.Wrapf(err, "join session %s", sessionID)
	}
	if s.ID == "" {
		s.ID = sessionID
	}
	if s.ParticipantID == "" {
		s.ParticipantID = req.ParticipantID
	}
	return s, nil
}

// Start asks the server to begin the game
func (c *Client) Start(ctx context.Context, sessionID string) error {
	path := fmt.Sprintf("/sessions/%s/start", sessionID)
	if err := c.post(ctx, path, nil, nil); err != nil {
		return errors.Wrapf(err, "start session %s", sessionID)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, buf)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
