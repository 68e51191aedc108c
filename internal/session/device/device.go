// Package device binds refresh sessions to the client that received them. A
// binding is a display label plus a coarse user-agent fingerprint, so a
// rotated token used from another browser shows up in the logs.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// Binding is what a refresh session remembers about its client.
type Binding struct {
	Label       string
	Fingerprint string
}

// Service builds and checks bindings. With fingerprints disabled a binding
// carries only the label and drift is never reported.
type Service struct {
	fingerprints bool
}

func NewService(fingerprints bool) *Service {
	return &Service{fingerprints: fingerprints}
}

// Bind describes the client sending userAgent.
func (s *Service) Bind(userAgent string) Binding {
	return Binding{
		Label:       Label(userAgent),
		Fingerprint: s.fingerprint(userAgent),
	}
}

// Drifted reports whether userAgent belongs to a different client than the
// one fingerprinted at issue time. Sessions without a fingerprint never drift.
func (s *Service) Drifted(issued Binding, userAgent string) bool {
	if !s.fingerprints || issued.Fingerprint == "" {
		return false
	}
	current := s.fingerprint(userAgent)
	return current != "" && current != issued.Fingerprint
}

// Label renders "Chrome on macOS" style names for the device list in logs.
func Label(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return unknownDevice
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	platform := ua.OS()
	if platform == "" {
		platform = ua.Platform()
	}
	if platform == "" {
		platform = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + platform)
}

// fingerprint hashes browser name, browser major version, OS and the mobile
// flag. Point releases of a browser keep the same fingerprint.
func (s *Service) fingerprint(userAgent string) string {
	if !s.fingerprints || strings.TrimSpace(userAgent) == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	browser, version := ua.Browser()
	major, _, _ := strings.Cut(version, ".")
	form := "desktop"
	if ua.Mobile() {
		form = "mobile"
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{browser, major, ua.OS(), form}, "|")))
	return hex.EncodeToString(sum[:])
}
