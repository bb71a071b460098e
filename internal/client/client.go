// Package client talks to the memberhub HTTP API.
package client

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

	"memberhub/internal/analyzer"
	"memberhub/internal/api"
	"memberhub/internal/auth"
	"memberhub/internal/collectors"
	"memberhub/internal/gitops"
	"memberhub/internal/members"
)

// APIError is a non-2xx answer. Message is the server's human-readable
// text when it sent one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed: %s", http.StatusText(e.Status))
	}
	return e.Message
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == status
}

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 90 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// send performs the request and turns non-2xx answers into *APIError.
// The caller closes the body of a successful response.
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	ae := &APIError{Status: resp.StatusCode}
	var eb api.ErrorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&eb); err == nil {
		ae.Message = eb.Error
	}
	return nil, ae
}

// Login signs in by member number and keeps the returned token.
func (c *Client) Login(ctx context.Context, memberNumber string) (*auth.Session, error) {
	var sess auth.Session
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", map[string]string{"member_number": memberNumber}, &sess); err != nil {
		return nil, err
	}
	c.Token = sess.AccessToken
	return &sess, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil)
}

// Me is the caller's identity and access as reported by the server.
type Me struct {
	UserID       string          `json:"user_id"`
	Email        string          `json:"email"`
	MemberNumber string          `json:"member_number"`
	Status       string          `json:"status"`
	Roles        []string        `json:"roles"`
	PrimaryRole  string          `json:"primary_role"`
	Permissions  map[string]bool `json:"permissions"`
	Tabs         []string        `json:"tabs"`
	Error        string          `json:"error"`
}

func (c *Client) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.do(ctx, http.MethodGet, "/api/v1/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

func (c *Client) SearchMembers(ctx context.Context, term, collector string) ([]members.Member, error) {
	q := url.Values{}
	if term != "" {
		q.Set("search", term)
	}
	if collector != "" {
		q.Set("collector", collector)
	}
	path := "/api/v1/members"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var ms []members.Member
	err := c.do(ctx, http.MethodGet, path, nil, &ms)
	return ms, err
}

func (c *Client) MemberCounts(ctx context.Context) ([]api.Count, error) {
	var counts []api.Count
	err := c.do(ctx, http.MethodGet, "/api/v1/members/count", nil, &counts)
	return counts, err
}

func (c *Client) Collectors(ctx context.Context) ([]collectors.Collector, error) {
	var cs []collectors.Collector
	err := c.do(ctx, http.MethodGet, "/api/v1/collectors", nil, &cs)
	return cs, err
}

// DownloadReport streams the members PDF into w.
func (c *Client) DownloadReport(ctx context.Context, collector string, w io.Writer) (int64, error) {
	path := "/api/v1/reports/members"
	if collector != "" {
		path += "?collector=" + url.QueryEscape(collector)
	}
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return io.Copy(w, resp.Body)
}

type PushResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *Client) GitPush(ctx context.Context, req gitops.PushRequest) (*PushResult, error) {
	resp, err := c.sendPush(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return resp, &APIError{Status: http.StatusBadRequest, Message: resp.Error}
	}
	return resp, nil
}

// sendPush keeps the {success, error} body of a rejected push.
func (c *Client) sendPush(ctx context.Context, req gitops.PushRequest) (*PushResult, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/git/push", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		hreq.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out PushResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &APIError{Status: resp.StatusCode}
	}
	return &out, nil
}

func (c *Client) GitLogs(ctx context.Context, limit int) ([]gitops.Log, error) {
	var logs []gitops.Log
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/git/logs?limit=%d", limit), nil, &logs)
	return logs, err
}

// AnalyzeMembers runs the admin diagnostic for the given member numbers.
func (c *Client) AnalyzeMembers(ctx context.Context, numbers []string) ([]analyzer.Result, error) {
	var res []analyzer.Result
	err := c.do(ctx, http.MethodPost, "/api/v1/system/analyze", map[string][]string{"member_numbers": numbers}, &res)
	return res, err
}
