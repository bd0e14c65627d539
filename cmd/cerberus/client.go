package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/server"
)

// APIClient talks to the admin API of a running daemon
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if baseURL == "" {
		baseURL = "http://localhost:8080/api"
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Services lists every registered service
func (c *APIClient) Services() ([]server.Status, error) {
	var out []server.Status
	err := c.do(http.MethodGet, "/services", &out)
	return out, err
}

// Service returns one service by key
func (c *APIClient) Service(key string) (server.Status, error) {
	var out server.Status
	err := c.do(http.MethodGet, "/services/"+url.PathEscape(key), &out)
	return out, err
}

// Transition runs start, stop or force-stop on one service
func (c *APIClient) Transition(key, op string) (server.Status, error) {
	var out server.Status
	err := c.do(http.MethodPost, "/services/"+url.PathEscape(key)+"/"+op, &out)
	return out, err
}

// All runs start or stop on every service
func (c *APIClient) All(op string) error {
	return c.do(http.MethodPost, "/"+op, nil)
}

func (c *APIClient) do(method, path string, out any) error {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API error: %s", resp.Status)
		}
		return fmt.Errorf("API error: %s", errorResp.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
