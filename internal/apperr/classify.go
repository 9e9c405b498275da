// Package apperr is the single error taxonomy for the client: every raw
// failure is classified into a Kind with a fixed retryability verdict, a
// user-facing message and recovery suggestions. Retry decisions and UI
// messaging both derive from the same classification.
package apperr

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies a category of failure.
type Kind string

const (
	KindNetworkUnreachable   Kind = "network_unreachable"
	KindConnectionTimeout    Kind = "connection_timeout"
	KindAuthenticationFailed Kind = "authentication_failed"
	KindSSLCertificate       Kind = "ssl_certificate_error"
	KindServerError          Kind = "server_error"
	KindServerUnavailable    Kind = "server_unavailable"
	KindSessionNotFound      Kind = "session_not_found"
	KindRateLimitExceeded    Kind = "rate_limit_exceeded"
	KindOffline              Kind = "offline"
	KindUnknown              Kind = "unknown"
)

// Kinds lists every Kind in the taxonomy.
var Kinds = []Kind{
	KindNetworkUnreachable,
	KindConnectionTimeout,
	KindAuthenticationFailed,
	KindSSLCertificate,
	KindServerError,
	KindServerUnavailable,
	KindSessionNotFound,
	KindRateLimitExceeded,
	KindOffline,
	KindUnknown,
}

// ClassifiedError is the structured form of a raw failure. Values are
// produced fresh on every classification and never mutated afterwards.
type ClassifiedError struct {
	Kind        Kind      `json:"kind"`
	Retryable   bool      `json:"retryable"`
	UserMessage string    `json:"user_message"`
	Detail      string    `json:"detail,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// retryableByKind is the fixed retryability default per kind. Unrecognized
// failures default to retryable: a transient hiccup is more common than a
// permanent fault.
var retryableByKind = map[Kind]bool{
	KindNetworkUnreachable:   true,
	KindConnectionTimeout:    true,
	KindAuthenticationFailed: false,
	KindSSLCertificate:       false,
	KindServerError:          true,
	KindServerUnavailable:    true,
	KindSessionNotFound:      false,
	KindRateLimitExceeded:    true,
	KindOffline:              true,
	KindUnknown:              true,
}

var userMessages = map[Kind]string{
	KindNetworkUnreachable:   "Unable to reach the server. Check your network connection.",
	KindConnectionTimeout:    "The connection timed out. The server may be slow or unreachable.",
	KindAuthenticationFailed: "Authentication failed. Please check your API credentials.",
	KindSSLCertificate:       "Secure connection failed. The server certificate could not be verified.",
	KindServerError:          "The server encountered an internal error. Please try again.",
	KindServerUnavailable:    "The server is temporarily unavailable. Please try again shortly.",
	KindSessionNotFound:      "That chat session no longer exists on the server.",
	KindRateLimitExceeded:    "Too many requests. Please wait a moment before trying again.",
	KindOffline:              "You appear to be offline. Reconnect to the internet and try again.",
	KindUnknown:              "Something went wrong. Please try again.",
}

var suggestions = map[Kind][]string{
	KindNetworkUnreachable: {
		"Check your internet connection",
		"Verify the server URL in settings",
		"Try again in a few seconds",
	},
	KindConnectionTimeout: {
		"Check your internet connection",
		"The server may be under load; retry shortly",
	},
	KindAuthenticationFailed: {
		"Check your API key in settings",
		"Verify the key has not expired or been revoked",
	},
	KindSSLCertificate: {
		"Verify the server's TLS certificate",
		"Check that your system clock is correct",
		"Contact the server administrator",
	},
	KindServerError: {
		"Retry the request",
		"Check the server logs if you operate the server",
	},
	KindServerUnavailable: {
		"Wait a moment and retry",
		"Check the server status page",
	},
	KindSessionNotFound: {
		"Refresh the session list",
		"Start a new session",
	},
	KindRateLimitExceeded: {
		"Wait before sending more requests",
		"Reduce how often you send messages",
	},
	KindOffline: {
		"Reconnect to the internet",
		"Check airplane mode and VPN settings",
	},
	KindUnknown: {
		"Retry the operation",
		"Check the application logs for details",
	},
}

// Classify turns any raw failure value into a ClassifiedError. It is total:
// nil, non-error values and unrecognized text all classify as KindUnknown.
func Classify(raw any) ClassifiedError {
	detail := textOf(raw)
	kind := matchKind(detail)
	return ClassifiedError{
		Kind:        kind,
		Retryable:   retryableByKind[kind],
		UserMessage: userMessages[kind],
		Detail:      detail,
		Timestamp:   time.Now(),
	}
}

// IsRetryable reports the classifier's retryability verdict for a raw failure.
func IsRetryable(raw any) bool {
	return Classify(raw).Retryable
}

// RecoverySuggestions returns the remediation hints for a kind, most useful
// first. Kinds outside the taxonomy get the KindUnknown hints.
func RecoverySuggestions(kind Kind) []string {
	s, ok := suggestions[kind]
	if !ok {
		s = suggestions[KindUnknown]
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func textOf(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case error:
		return v.Error()
	case string:
		return v
	default:
		return fmt.Sprintf("%v", raw)
	}
}

// matchKind tests token groups in fixed priority order; the first group that
// matches wins, so overlapping tokens (e.g. "timeout" in a 500 response body)
// resolve deterministically.
func matchKind(text string) Kind {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "ssl", "tls handshake", "certificate"):
		return KindSSLCertificate
	case containsAny(lower, "401", "403", "unauthorized", "authentication failed", "forbidden"):
		return KindAuthenticationFailed
	case containsAny(lower, "404", "not found"):
		return KindSessionNotFound
	case containsAny(lower, "429", "too many requests"):
		return KindRateLimitExceeded
	case containsAny(lower, "503", "service unavailable"):
		return KindServerUnavailable
	case containsAny(lower, "500", "502", "504", "internal server error"):
		return KindServerError
	case containsAny(lower, "etimedout", "timed out", "timeout", "deadline exceeded"):
		return KindConnectionTimeout
	case containsAny(lower, "offline"):
		return KindOffline
	case containsAny(lower, "econnrefused", "econnreset", "network", "unreachable", "connection refused", "connection reset"):
		return KindNetworkUnreachable
	default:
		return KindUnknown
	}
}

func containsAny(s string, tokens ...string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}
