package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/synk/synk-server-go/internal/audit"
	"github.com/synk/synk-server-go/internal/config"
	apperrors "github.com/synk/synk-server-go/internal/errors"
	"github.com/synk/synk-server-go/internal/httputil"
	"github.com/synk/synk-server-go/internal/util"
)

// KeySource selects the identity a rule counts requests against.
type KeySource int

const (
	// KeyClient is the account id when authenticated, otherwise the client IP.
	KeyClient KeySource = iota
	KeyIP
	// KeyEmail is the lowercase email in the JSON request body, stored hashed.
	KeyEmail
)

type RateLimitRule struct {
	Name   string
	Prefix string
	Limit  int
	Window time.Duration
	Key    KeySource
	// AuthMultiplier scales Limit for authenticated callers; 0 means 1.
	AuthMultiplier int
	// IPLimit, when positive, caps each client IP within Window before the
	// rule's own key is counted.
	IPLimit int
}

func (r RateLimitRule) matches(path string) bool {
	if !strings.HasPrefix(path, r.Prefix) {
		return false
	}
	return len(path) == len(r.Prefix) ||
		strings.HasSuffix(r.Prefix, "/") ||
		path[len(r.Prefix)] == '/'
}

// RateLimitPolicy resolves a request path to one rule: the longest matching
// prefix wins, and among equal prefixes the earliest declared rule.
type RateLimitPolicy struct {
	rules []RateLimitRule
}

func NewRateLimitPolicy(rules ...RateLimitRule) *RateLimitPolicy {
	return &RateLimitPolicy{rules: rules}
}

func DefaultRateLimitPolicy(cfg *config.Config) *RateLimitPolicy {
	return NewRateLimitPolicy(
		RateLimitRule{
			Name:           "general",
			Prefix:         "/api/",
			Limit:          cfg.RateLimitPerHour,
			Window:         config.GeneralRateLimitWindow,
			Key:            KeyClient,
			AuthMultiplier: config.AuthenticatedRateMultiplier,
		},
		RateLimitRule{
			Name:    "registration",
			Prefix:  "/api/register",
			Limit:   cfg.RegistrationLimitPerHour,
			Window:  config.RegistrationRateLimitWindow,
			Key:     KeyEmail,
			IPLimit: config.RegistrationIPRateLimit,
		},
		RateLimitRule{
			Name:   "auth",
			Prefix: "/api/auth",
			Limit:  config.AuthRateLimit,
			Window: config.AuthRateLimitWindow,
			Key:    KeyIP,
		},
		RateLimitRule{
			Name:   "account_deletion",
			Prefix: "/api/users/delete_account",
			Limit:  config.AccountDeletionRateLimit,
			Window: config.AccountDeletionWindow,
			Key:    KeyClient,
		},
	)
}

func (p *RateLimitPolicy) Resolve(path string) (RateLimitRule, bool) {
	best := -1
	for i, rule := range p.rules {
		if !rule.matches(path) {
			continue
		}
		if best < 0 || len(rule.Prefix) > len(p.rules[best].Prefix) {
			best = i
		}
	}
	if best < 0 {
		return RateLimitRule{}, false
	}
	return p.rules[best], true
}

type RateLimitMiddleware struct {
	limiter Limiter
	policy  *RateLimitPolicy
}

func NewRateLimitMiddleware(limiter Limiter, policy *RateLimitPolicy) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		policy:  policy,
	}
}

// Handler must run after AuthMiddleware.Handler so authenticated callers are
// counted by account.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rule, ok := m.policy.Resolve(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		// The IP ceiling runs first so a denied caller cannot mint new buckets
		// for the rule's own key.
		if rule.IPLimit > 0 {
			key := fmt.Sprintf("%s:ip:%s", rule.Name, httputil.ClientIP(r))
			if allowed, retryAfter := m.limiter.Check(r.Context(), key, rule.IPLimit, rule.Window); !allowed {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rule.IPLimit))
				m.reject(w, r, rule, retryAfter)
				return
			}
		}

		identity, limit := m.identify(r, rule)
		if identity == "" {
			next.ServeHTTP(w, r)
			return
		}

		key := fmt.Sprintf("%s:%s", rule.Name, identity)
		allowed, retryAfter := m.limiter.Check(r.Context(), key, limit, rule.Window)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))

		if !allowed {
			m.reject(w, r, rule, retryAfter)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) reject(w http.ResponseWriter, r *http.Request, rule RateLimitRule, retryAfter int) {
	log.Warn().
		Str("rule", rule.Name).
		Str("path", r.URL.Path).
		Int("retryAfter", retryAfter).
		Msg("rate limit exceeded")

	event := audit.Event{
		Type:    audit.EventRateLimitExceed,
		Details: map[string]interface{}{"rule": rule.Name, "retryAfter": retryAfter},
	}
	if account := GetAccount(r.Context()); account != nil {
		event.AccountID = account.ID
	}
	audit.LogFromRequest(r, event)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	httputil.WriteError(w, apperrors.RateLimitExceeded(retryAfter))
}

func (m *RateLimitMiddleware) identify(r *http.Request, rule RateLimitRule) (string, int) {
	switch rule.Key {
	case KeyEmail:
		email := emailFromBody(r)
		if email == "" {
			return "", 0
		}
		return "email:" + util.HashToken(email), rule.Limit

	case KeyIP:
		return "ip:" + httputil.ClientIP(r), rule.Limit

	default:
		if account := GetAccount(r.Context()); account != nil {
			limit := rule.Limit
			if rule.AuthMultiplier > 1 {
				limit *= rule.AuthMultiplier
			}
			return "account:" + account.ID, limit
		}
		return "ip:" + httputil.ClientIP(r), rule.Limit
	}
}

// emailFromBody peeks at the JSON body and restores it for the next handler.
// A body without a parseable email yields "", leaving rejection to validation.
func emailFromBody(r *http.Request) string {
	if r.Body == nil {
		return ""
	}

	body, err := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	email := util.NormalizeEmail(payload.Email)
	if !util.IsValidEmail(email) {
		return ""
	}
	return email
}
