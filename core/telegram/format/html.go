package format

import (
	"html"
	"strings"
)

// EscapeHTML escapes text for Telegram's HTML parse mode (&, <, > and quotes).
func EscapeHTML(text string) string {
	return html.EscapeString(text)
}

// Code wraps escaped text in a monospace block.
func Code(text string) string {
	return "<code>" + EscapeHTML(text) + "</code>"
}

// Bold wraps escaped text in bold tags.
func Bold(text string) string {
	return "<b>" + EscapeHTML(text) + "</b>"
}

// Lines joins sections with newlines; an empty part yields a blank line.
func Lines(parts ...string) string {
	return strings.Join(parts, "\n")
}
