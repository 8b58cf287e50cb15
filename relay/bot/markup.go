package bot

import (
	"github.com/m3rciful/proxyrelay/core/telegram/keyboard"
	"github.com/m3rciful/proxyrelay/relay/submission"
	"github.com/m3rciful/proxyrelay/relay/validate"

	tele "gopkg.in/telebot.v4"
)

// Callback keys.
const (
	cbType      = "type"
	cbOperator  = "op"
	cbCancel    = "cancel"
	cbCheckJoin = "check_join"
)

// Markups are rebuilt per send because telebot rewrites callback data in place.

func typeMenu() *tele.ReplyMarkup {
	return keyboard.Inline([]keyboard.Button{
		keyboard.Callback(buttonSendConfig, cbType, string(validate.V2Ray)),
		keyboard.Callback(buttonSendProxy, cbType, string(validate.Proxy)),
	})
}

func operatorMenu() *tele.ReplyMarkup {
	ops := submission.Operators()
	buttons := make([]keyboard.Button, 0, len(ops))
	for _, op := range ops {
		buttons = append(buttons, keyboard.Callback(op.Label, cbOperator, op.Key))
	}
	return keyboard.Grid(buttons, 2, cancelRow())
}

func cancelMenu() *tele.ReplyMarkup {
	return keyboard.Inline(cancelRow())
}

func cancelRow() []keyboard.Button {
	return []keyboard.Button{keyboard.Callback(buttonCancel, cbCancel, "")}
}

func joinMenu(link string) *tele.ReplyMarkup {
	var rows [][]keyboard.Button
	if link != "" {
		rows = append(rows, []keyboard.Button{keyboard.Link(buttonJoin, link)})
	}
	rows = append(rows, []keyboard.Button{keyboard.Callback(buttonJoined, cbCheckJoin, "")})
	return keyboard.Inline(rows...)
}
