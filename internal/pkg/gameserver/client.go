package gameserver

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

	"github.com/gofiber/fiber/v2/log"

	"github.com/jackmine/storefront/internal/pkg/entitlements"
	"github.com/jackmine/storefront/internal/pkg/env"
)

// Client calls the game server's account API. Without a base URL it runs in
// simulated mode: every call is logged and succeeds.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// ErrPlayerNotFound is returned when the game server does not know the player.
var ErrPlayerNotFound = errors.New("player not found on game server")

type accountUpdate struct {
	Username     string `json:"username"`
	Plan         string `json:"plan"`
	DurationDays int    `json:"duration_days"`
}

type itemGrant struct {
	Username string `json:"username"`
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// Result is the game server's answer to a grant.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Token:   strings.TrimSpace(token),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// NewClientFromEnv reads GAMESERVER_API_URL and GAMESERVER_API_TOKEN.
func NewClientFromEnv() *Client {
	c := NewClient(env.GetEnv("GAMESERVER_API_URL", ""), env.GetEnv("GAMESERVER_API_TOKEN", ""))
	if c.Simulated() {
		log.Warn("[GameServer] GAMESERVER_API_URL not set, grants are simulated")
	}
	return c
}

// Simulated reports whether calls are only logged.
func (c *Client) Simulated() bool {
	return c.BaseURL == ""
}

// UpdatePlayerAccount sets the plan of a player for durationDays. FREE revokes paid perks.
func (c *Client) UpdatePlayerAccount(ctx context.Context, idempotencyKey, username string, plan entitlements.Plan, durationDays int) (*Result, error) {
	if strings.TrimSpace(username) == "" {
		return nil, errors.New("username is required")
	}
	if c.Simulated() {
		log.Infof("[GameServer] (simulated) Updating account of %s to %s for %d days", username, plan, durationDays)
		return &Result{Success: true, Message: fmt.Sprintf("Account of %s updated to %s", username, plan)}, nil
	}
	return c.post(ctx, "/players/account", idempotencyKey, accountUpdate{
		Username:     username,
		Plan:         string(plan),
		DurationDays: durationDays,
	})
}

// AddItemToPlayer delivers quantity units of itemID to a player.
func (c *Client) AddItemToPlayer(ctx context.Context, idempotencyKey, username, itemID string, quantity int) (*Result, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(itemID) == "" {
		return nil, errors.New("username and item id are required")
	}
	if quantity <= 0 {
		quantity = 1
	}
	if c.Simulated() {
		log.Infof("[GameServer] (simulated) Adding %dx %s to %s", quantity, itemID, username)
		return &Result{Success: true, Message: fmt.Sprintf("%s added to %s", itemID, username)}, nil
	}
	return c.post(ctx, "/players/items", idempotencyKey, itemGrant{
		Username: username,
		ItemID:   itemID,
		Quantity: quantity,
	})
}

func (c *Client) post(ctx context.Context, path, idempotencyKey string, body interface{}) (*Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrPlayerNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("game server request %s failed: status=%d body=%s", path, resp.StatusCode, string(respBody))
	}

	out := &Result{Success: true}
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return nil, fmt.Errorf("decode game server response: %w", err)
		}
	}
	if !out.Success {
		return out, fmt.Errorf("game server rejected %s: %s", path, out.Message)
	}
	return out, nil
}
