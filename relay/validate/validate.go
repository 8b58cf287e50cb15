// Package validate classifies user-submitted text as a Telegram proxy link,
// a V2Ray configuration or subscription link, or neither.
package validate

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind is the declared type of a submission.
type Kind string

const (
	// Invalid marks text that is neither a proxy nor a config link.
	Invalid Kind = ""
	// Proxy is a Telegram MTProto or SOCKS proxy link.
	Proxy Kind = "proxy"
	// V2Ray is a V2Ray share link or a subscription URL.
	V2Ray Kind = "v2ray"
)

// String returns the kind key, "invalid" for the zero value.
func (k Kind) String() string {
	if k == Invalid {
		return "invalid"
	}
	return string(k)
}

// ParseKind maps a callback payload to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Proxy:
		return Proxy, true
	case V2Ray:
		return V2Ray, true
	}
	return Invalid, false
}

// MinLinkLength is the rune count below which trimmed text is never a link.
const MinLinkLength = 10

// MaxNameLength bounds display names, ellipsis included.
const MaxNameLength = 40

const ellipsis = "…"

var proxyPrefixes = []string{
	"tg://proxy?",
	"tg://socks?",
	"https://t.me/proxy?",
	"https://t.me/socks?",
	"t.me/proxy?",
	"t.me/socks?",
}

var configPrefixes = []string{
	"vmess://",
	"vless://",
	"trojan://",
	"ss://",
	"ssr://",
	"http://",
	"https://",
}

func hasPrefixFold(text string, prefixes []string) bool {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinLinkLength {
		return false
	}
	lower := strings.ToLower(text)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// IsProxyLink reports whether text starts with a Telegram proxy link form.
// The query string is not inspected.
func IsProxyLink(text string) bool {
	return hasPrefixFold(text, proxyPrefixes)
}

// IsConfigLink reports whether text is a V2Ray share link or any http(s)
// URL, which is treated as a subscription link.
func IsConfigLink(text string) bool {
	return hasPrefixFold(text, configPrefixes)
}

// Classify returns the kind text belongs to. Proxy forms are checked first
// since https://t.me proxy links are also valid http(s) URLs.
func Classify(text string) Kind {
	switch {
	case IsProxyLink(text):
		return Proxy
	case IsConfigLink(text):
		return V2Ray
	}
	return Invalid
}

// Matches confirms text against a declared kind.
func Matches(kind Kind, text string) bool {
	switch kind {
	case Proxy:
		return IsProxyLink(text)
	case V2Ray:
		return IsConfigLink(text)
	}
	return false
}

// CleanName collapses whitespace runs, trims and truncates text to
// MaxNameLength runes, marking truncation with an ellipsis. CleanName is
// idempotent.
func CleanName(text string) string {
	name := strings.Join(strings.FieldsFunc(text, unicode.IsSpace), " ")
	if utf8.RuneCountInString(name) <= MaxNameLength {
		return name
	}
	runes := []rune(name)[:MaxNameLength-1]
	return strings.TrimRightFunc(string(runes), unicode.IsSpace) + ellipsis
}
