// Package model defines the domain types used across the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// UserPreferences holds a subscriber's briefing settings.
// Subscribers are soft-expired via IsActive, never deleted.
type UserPreferences struct {
	UserID    string
	Email     string
	Topics    []string
	Timezone  string // IANA name, e.g. "America/New_York"
	SendTime  string // local wall-clock "HH:MM"
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Article is a candidate news article returned by a search provider.
// Immutable once fetched.
type Article struct {
	URL         string
	Title       string
	Content     string
	PublishedAt *time.Time
	Score       float64
}

// Fingerprint returns the stable dedup identity of the article: a SHA-256
// hash over the normalized URL and title.
func (a Article) Fingerprint() string {
	h := sha256.Sum256([]byte(NormalizeURL(a.URL) + "|" + strings.TrimSpace(a.Title)))
	return fmt.Sprintf("sha256:%x", h[:16])
}

// NormalizeURL canonicalizes an article URL for fingerprinting: lowercased
// scheme and host, no fragment, no trailing slash, tracking parameters dropped.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(strings.ToLower(raw))
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if strings.HasPrefix(strings.ToLower(key), "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// Summary is the generated short text for an article that survived dedup.
// One-to-one with (fingerprint, user).
type Summary struct {
	Fingerprint string
	UserID      string
	Title       string
	URL         string
	Text        string
	GeneratedAt time.Time
}

// QuotaGrant is one conditional counter increment: granted iff used+Amount <= Cap.
type QuotaGrant struct {
	Category string
	Bucket   string
	Amount   int
	Cap      int
}

// DeliveryReceipt is returned by the email collaborator on a successful send.
type DeliveryReceipt struct {
	MessageID string
	To        string
	SentAt    time.Time
}
