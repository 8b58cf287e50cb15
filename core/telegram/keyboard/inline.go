// Package keyboard builds inline reply markups.
package keyboard

import (
	"slices"

	tele "gopkg.in/telebot.v4"
)

// Button is one inline button: a link when URL is set, otherwise a callback
// routed by Unique with Data as its payload.
type Button struct {
	Text   string
	Unique string
	Data   string
	URL    string
}

// Callback returns a callback button.
func Callback(text, unique, data string) Button {
	return Button{Text: text, Unique: unique, Data: data}
}

// Link returns a URL button.
func Link(text, url string) Button {
	return Button{Text: text, URL: url}
}

func (b Button) inline(rm *tele.ReplyMarkup) tele.InlineButton {
	if b.URL != "" {
		return *rm.URL(b.Text, b.URL).Inline()
	}
	return *rm.Data(b.Text, b.Unique, b.Data).Inline()
}

// Inline lays out rows as given. Empty rows are dropped.
func Inline(rows ...[]Button) *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			line = append(line, b.inline(rm))
		}
		rm.InlineKeyboard = append(rm.InlineKeyboard, line)
	}
	return rm
}

// Grid wraps buttons into rows of perRow and appends footer rows below.
func Grid(buttons []Button, perRow int, footer ...[]Button) *tele.ReplyMarkup {
	rows := slices.Collect(slices.Chunk(buttons, max(perRow, 1)))
	return Inline(append(rows, footer...)...)
}
