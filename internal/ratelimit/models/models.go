package models

import (
	"strings"
	"time"
)

// EndpointClass groups routes that share a limit.
type EndpointClass string

const (
	// ClassAuth covers register, login and refresh, keyed by client IP.
	ClassAuth EndpointClass = "auth"
	// ClassAccountWrite covers onboarding and consent mutations, keyed by account.
	ClassAccountWrite EndpointClass = "account_write"
)

func (c EndpointClass) String() string { return string(c) }

// Limit is the number of requests allowed in a sliding window.
type Limit struct {
	RequestsPerWindow int
	Window            time.Duration
}

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// ExceededResponse is the 429 body. It keeps the shared error envelope.
type ExceededResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RetryAfter       int    `json:"retry_after"`
}

// SanitizeKeySegment escapes the key delimiter so a caller-controlled segment
// cannot spill into a neighbouring bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewIPKey buckets requests by client IP and class.
func NewIPKey(ip string, class EndpointClass) string {
	return "ip:" + SanitizeKeySegment(ip) + ":" + class.String()
}

// NewAccountKey buckets requests by account and class.
func NewAccountKey(accountID string, class EndpointClass) string {
	return "account:" + SanitizeKeySegment(accountID) + ":" + class.String()
}
