package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yakin/dating-app/internal/protocol"
)

// apiEnvelope is the REST API's uniform response wrapper.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// RESTClient talks to the realtime server's HTTP API. Chat sends go through
// REST first so messages are persisted even if the socket echo is lost.
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewRESTClient creates a RESTClient for the given base URL (e.g.
// http://host:8080/api) authenticating with the given token.
func NewRESTClient(baseURL, token string) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// History fetches the most recent messages of a room, newest first.
func (c *RESTClient) History(ctx context.Context, roomName string, limit int) ([]protocol.MessageRecord, error) {
	q := url.Values{}
	q.Set("room", roomName)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var records []protocol.MessageRecord
	if err := c.do(ctx, http.MethodGet, "/chat/history?"+q.Encode(), nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SendMessage persists a room message and returns the stored record with its
// server-assigned ID.
func (c *RESTClient) SendMessage(ctx context.Context, roomName, body string) (protocol.MessageRecord, error) {
	req := struct {
		Room    string `json:"room"`
		Message string `json:"message"`
	}{Room: roomName, Message: body}

	var rec protocol.MessageRecord
	if err := c.do(ctx, http.MethodPost, "/chat/send", req, &rec); err != nil {
		return protocol.MessageRecord{}, err
	}
	return rec, nil
}

// PrivateHistory fetches the most recent messages of a pairwise private
// room, newest first.
func (c *RESTClient) PrivateHistory(ctx context.Context, roomName string, limit int) ([]protocol.MessageRecord, error) {
	q := url.Values{}
	q.Set("room", roomName)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var records []protocol.MessageRecord
	if err := c.do(ctx, http.MethodGet, "/chat/private/history?"+q.Encode(), nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SendPrivate persists a 1:1 message to the given recipient and returns the
// stored record.
func (c *RESTClient) SendPrivate(ctx context.Context, friendID, roomName, body string) (protocol.MessageRecord, error) {
	req := struct {
		FriendID string `json:"friend_id"`
		Room     string `json:"room"`
		Message  string `json:"message"`
	}{FriendID: friendID, Room: roomName, Message: body}

	var rec protocol.MessageRecord
	if err := c.do(ctx, http.MethodPost, "/chat/private/send", req, &rec); err != nil {
		return protocol.MessageRecord{}, err
	}
	return rec, nil
}

// PostLocation persists the local user's position.
func (c *RESTClient) PostLocation(ctx context.Context, loc protocol.Coordinates) error {
	return c.do(ctx, http.MethodPost, "/location", loc, nil)
}

// Nearby queries users within radiusMeters of the local user's last stored
// position.
func (c *RESTClient) Nearby(ctx context.Context, radiusMeters float64, limit int) ([]protocol.NearbyUser, error) {
	q := url.Values{}
	q.Set("radius", strconv.FormatFloat(radiusMeters, 'f', -1, 64))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var users []protocol.NearbyUser
	if err := c.do(ctx, http.MethodGet, "/location/nearby?"+q.Encode(), nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// do performs one API round trip, unwrapping the response envelope into out
// (which may be nil when the caller only cares about success).
func (c *RESTClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("client: decode response for %s %s: %w", method, path, err)
	}
	if !env.Success {
		if env.Message == "" {
			env.Message = resp.Status
		}
		return fmt.Errorf("client: %s %s failed: %s", method, path, env.Message)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("client: decode data for %s %s: %w", method, path, err)
		}
	}
	return nil
}
