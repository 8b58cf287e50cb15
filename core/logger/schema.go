package logger

import "strings"

// Status and outcome values accepted in log lines. Unknown statuses are
// kept lowercased; unknown outcomes are dropped.
var (
	knownStatus  = set("ok", "fail", "skip", "retry", "rate_limited", "cancelled", "denied", "rejected")
	knownOutcome = set("ok", "fail", "cancelled", "rate_limited", "denied", "rejected", "published")
)

// defaultKeyOrder puts envelope and correlation fields first, then the
// relay's own vocabulary. Keys not listed follow alphabetically.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type", "handler",
	"op", "cb_key", "outcome", "duration_ms",
	"submission_id", "step", "from", "to", "kind", "operator", "reason",
	"target_id", "enabled", "banned", "channel", "message_id",
	"mode", "listen", "driver", "db", "host", "port", "key",
	"err", "err_code", "cause", "attempts", "backoff_ms", "rate_limited",
}

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

// normalizeLevel maps slog level names, including offsets such as
// "DEBUG+2", onto the four canonical names.
func normalizeLevel(level string) string {
	base, _, _ := strings.Cut(strings.ToUpper(level), "+")
	base, _, _ = strings.Cut(base, "-")
	switch base {
	case "DEBUG", "INFO", "WARN", "ERROR":
		return base
	case "WARNING":
		return "WARN"
	case "":
		return "INFO"
	}
	return strings.ToUpper(level)
}

func normalizeStatus(status string) (string, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	return status, knownStatus[status]
}

func normalizeOutcome(outcome string) (string, bool) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	return outcome, knownOutcome[outcome]
}
