package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/synk/synk-server-go/internal/httputil"
)

type EventType string

const (
	EventLoginSuccess    EventType = "login_success"
	EventLoginFailure    EventType = "login_failure"
	EventAccountCreate   EventType = "account_create"
	EventAccountDelete   EventType = "account_delete"
	EventCodeIssue       EventType = "code_issue"
	EventPairCreate      EventType = "pair_create"
	EventPairDelete      EventType = "pair_delete"
	EventRateLimitExceed EventType = "rate_limit_exceeded"
	EventAuthFailure     EventType = "auth_failure"
)

type Event struct {
	Type      EventType
	AccountID string
	IP        string
	UserAgent string
	Details   map[string]interface{}
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "security").
		Str("eventType", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.AccountID != "" {
		logger = logger.With().Str("accountId", event.AccountID).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("userAgent", event.UserAgent).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("security audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = httputil.ClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}
