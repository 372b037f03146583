package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SocialSender delivers a direct message to a social-network user.
type SocialSender interface {
	Send(ctx context.Context, userID string, body string) error
}

const vkAPIVersion = "5.199"

// VKSender delivers messages through the VK messages.send API.
type VKSender struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewVKSender(baseURL string, token string) *VKSender {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.vk.com"
	}
	return &VKSender{
		baseURL: baseURL,
		token:   strings.TrimSpace(token),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (s *VKSender) Send(ctx context.Context, userID string, body string) error {
	if s.token == "" {
		return errors.New("vk access token not configured")
	}

	form := url.Values{}
	form.Set("user_id", userID)
	form.Set("message", body)
	// VK requires a client-generated id to dedup retried sends.
	form.Set("random_id", fmt.Sprintf("%d", rand.Int63()))
	form.Set("access_token", s.token)
	form.Set("v", vkAPIVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/method/messages.send", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("vk api returned status %d", resp.StatusCode)
	}

	// The API reports errors in the body with HTTP 200.
	var apiResp struct {
		Error *struct {
			Code    int    `json:"error_code"`
			Message string `json:"error_msg"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("vk api response decode: %w", err)
	}
	if apiResp.Error != nil {
		return fmt.Errorf("vk api error %d: %s", apiResp.Error.Code, apiResp.Error.Message)
	}
	return nil
}

// NoopSocialSender accepts everything. Dev and test environments only.
type NoopSocialSender struct{}

func NewNoopSocialSender() *NoopSocialSender {
	return &NoopSocialSender{}
}

func (s *NoopSocialSender) Send(_ context.Context, _ string, _ string) error {
	return nil
}
