// Package line is the thin Messaging API client: reply, push, profile
// fetch, login token exchange, and webhook payload parsing. Nothing in
// here knows about water.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultReplyEndpoint   = "https://api.line.me/v2/bot/message/reply"
	defaultPushEndpoint    = "https://api.line.me/v2/bot/message/push"
	defaultProfileEndpoint = "https://api.line.me/v2/bot/profile"
	defaultTokenEndpoint   = "https://api.line.me/oauth2/v2.1/token"
	defaultLoginProfile    = "https://api.line.me/v2/profile"
)

// Profile is the subset of a LINE profile the bot cares about.
type Profile struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl"`
	StatusMessage string `json:"statusMessage"`
	Language      string `json:"language"`
}

// Config carries channel credentials and optional endpoint overrides
// (tests point them at httptest servers).
type Config struct {
	ChannelAccessToken string
	ChannelSecret      string
	ChannelID          string
	LoginRedirectURI   string

	ReplyEndpoint        string
	PushEndpoint         string
	ProfileEndpoint      string
	TokenEndpoint        string
	LoginProfileEndpoint string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.ReplyEndpoint == "" {
		cfg.ReplyEndpoint = defaultReplyEndpoint
	}
	if cfg.PushEndpoint == "" {
		cfg.PushEndpoint = defaultPushEndpoint
	}
	if cfg.ProfileEndpoint == "" {
		cfg.ProfileEndpoint = defaultProfileEndpoint
	}
	if cfg.TokenEndpoint == "" {
		cfg.TokenEndpoint = defaultTokenEndpoint
	}
	if cfg.LoginProfileEndpoint == "" {
		cfg.LoginProfileEndpoint = defaultLoginProfile
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// ChannelSecret exposes the secret for webhook signature checks.
func (c *Client) ChannelSecret() string { return c.cfg.ChannelSecret }

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ReplyMessage answers a webhook event through its reply token.
func (c *Client) ReplyMessage(ctx context.Context, replyToken, text string) error {
	payload := map[string]any{
		"replyToken": replyToken,
		"messages":   []textMessage{{Type: "text", Text: text}},
	}
	return c.post(ctx, c.cfg.ReplyEndpoint, payload)
}

// PushMessage sends a message outside a reply window.
func (c *Client) PushMessage(ctx context.Context, to, text string) error {
	payload := map[string]any{
		"to":       to,
		"messages": []textMessage{{Type: "text", Text: text}},
	}
	return c.post(ctx, c.cfg.PushEndpoint, payload)
}

// GetProfile fetches a bot friend's profile.
func (c *Client) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.ProfileEndpoint+"/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, fmt.Errorf("create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.ChannelAccessToken)

	return c.decodeProfile(req)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	IDToken     string `json:"id_token"`
	TokenType   string `json:"token_type"`
}

// ExchangeLogin runs the LINE Login authorization-code exchange and
// returns the logged-in user's profile. This is how the tracking client
// links a browser session to a LINE account. An empty redirectURI falls
// back to the configured one; when provided it must match the URI used
// to obtain the code.
func (c *Client) ExchangeLogin(ctx context.Context, code, redirectURI string) (*Profile, error) {
	if redirectURI == "" {
		redirectURI = c.cfg.LoginRedirectURI
	}
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("client_id", c.cfg.ChannelID)
	form.Set("client_secret", c.cfg.ChannelSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("token response missing access_token")
	}

	profileReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.LoginProfileEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create login profile request: %w", err)
	}
	profileReq.Header.Set("Authorization", "Bearer "+token.AccessToken)

	return c.decodeProfile(profileReq)
}

func (c *Client) decodeProfile(req *http.Request) (*Profile, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("profile endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode profile response: %w", err)
	}
	if profile.UserID == "" {
		return nil, errors.New("profile response missing userId")
	}
	return &profile, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.ChannelAccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("line api returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
