package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

var scenarioSeq atomic.Int64

// TestContext carries one scenario's HTTP state against a running server.
// Each scenario gets its own client IP so rate limit windows do not leak
// between scenarios.
type TestContext struct {
	BaseURL string

	client       *http.Client
	clientIP     string
	accessToken  string
	refreshToken string
	profiles     map[int64]string

	lastStatus  int
	lastHeaders http.Header
	lastBody    []byte
}

func NewTestContext(baseURL string) *TestContext {
	n := scenarioSeq.Add(1)
	return &TestContext{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
		clientIP: fmt.Sprintf("198.18.%d.%d", (n/250)%250, n%250+1),
		profiles: make(map[int64]string),
	}
}

func (tc *TestContext) POST(path string, body interface{}) error {
	return tc.do(http.MethodPost, path, body, tc.accessToken)
}

func (tc *TestContext) POSTAnonymous(path string, body interface{}) error {
	return tc.do(http.MethodPost, path, body, "")
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil, tc.accessToken)
}

func (tc *TestContext) GETWithToken(path, token string) error {
	return tc.do(http.MethodGet, path, nil, token)
}

func (tc *TestContext) do(method, path string, body interface{}, token string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Forwarded-For", tc.clientIP)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	tc.lastStatus = resp.StatusCode
	tc.lastHeaders = resp.Header
	return nil
}

func (tc *TestContext) GetLastResponseStatus() int { return tc.lastStatus }

func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }

func (tc *TestContext) GetLastResponseHeader(name string) string {
	if tc.lastHeaders == nil {
		return ""
	}
	return tc.lastHeaders.Get(name)
}

// GetResponseField reads a dotted path such as "active_profile.access_level"
// from the last JSON response.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var current interface{}
	if err := json.Unmarshal(tc.lastBody, &current); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	for _, part := range strings.Split(field, ".") {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, part)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not found in response", field)
		}
	}
	return current, nil
}

func (tc *TestContext) DecodeResponse(v interface{}) error {
	return json.Unmarshal(tc.lastBody, v)
}

func (tc *TestContext) GetAccessToken() string { return tc.accessToken }

func (tc *TestContext) SetAccessToken(token string) { tc.accessToken = token }

func (tc *TestContext) GetRefreshToken() string { return tc.refreshToken }

func (tc *TestContext) SetRefreshToken(token string) { tc.refreshToken = token }

func (tc *TestContext) SetProfileID(recordID int64, profileID string) {
	tc.profiles[recordID] = profileID
}

func (tc *TestContext) GetProfileID(recordID int64) (string, error) {
	profileID, ok := tc.profiles[recordID]
	if !ok {
		return "", fmt.Errorf("no profile created for alumni record %d", recordID)
	}
	return profileID, nil
}
