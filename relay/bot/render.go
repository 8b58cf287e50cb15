package bot

import (
	"errors"

	tghelpers "github.com/m3rciful/proxyrelay/core/telegram/helpers"
	"github.com/m3rciful/proxyrelay/relay/access"
	"github.com/m3rciful/proxyrelay/relay/flow"
	"github.com/m3rciful/proxyrelay/relay/submission"

	tele "gopkg.in/telebot.v4"
)

// render turns a flow reply into chat messages. Replies to button presses
// edit the pressed message where possible.
func (a *App) render(c tele.Context, r flow.Reply) error {
	show := tghelpers.SendHTML
	if c.Callback() != nil {
		show = tghelpers.EditOrSendHTML
	}

	switch r.Screen {
	case flow.ScreenNone:
		return nil
	case flow.ScreenAskType:
		return show(c, textWelcome, typeMenu())
	case flow.ScreenMenu:
		if c.Callback() != nil {
			return show(c, textWelcome, typeMenu())
		}
		return show(c, textMenu, typeMenu())
	case flow.ScreenJoin:
		return show(c, joinText(a.cfg.Channels.SponsorUsername), joinMenu(a.cfg.SponsorLink()))
	case flow.ScreenNotJoined:
		return show(c, textNotJoined, joinMenu(a.cfg.SponsorLink()))
	case flow.ScreenStartHint:
		return show(c, textStartHint)
	case flow.ScreenDenied:
		if errors.Is(r.Err, access.ErrBanned) {
			return show(c, textBanned)
		}
		return show(c, textDisabled)
	case flow.ScreenAskName:
		text := askNameText(r.Kind)
		if r.Err != nil {
			text = textEmptyName + "\n\n" + text
		}
		return show(c, text, cancelMenu())
	case flow.ScreenAskOperator:
		return show(c, textAskOperator, operatorMenu())
	case flow.ScreenAskPayload:
		text := askPayloadText(r.Kind)
		var ve *flow.ValidationError
		if errors.As(r.Err, &ve) && ve.Step == submission.AwaitingPayload {
			text = invalidPayloadText(r.Kind)
		}
		return show(c, text, cancelMenu())
	case flow.ScreenPublished:
		if err := show(c, publishedText(r.Kind)); err != nil {
			return err
		}
		return tghelpers.SendHTML(c, textMenu, typeMenu())
	case flow.ScreenDeliveryFailed:
		if err := show(c, textDeliveryFailed); err != nil {
			return err
		}
		return tghelpers.SendHTML(c, textMenu, typeMenu())
	case flow.ScreenCancelled:
		if err := show(c, textCancelled); err != nil {
			return err
		}
		return tghelpers.SendHTML(c, textMenu, typeMenu())
	case flow.ScreenStatus:
		return show(c, statusText(r.Status))
	case flow.ScreenAdminDone:
		return show(c, adminDoneText(r))
	case flow.ScreenAdminUsage:
		return show(c, adminUsageText(r.Action))
	case flow.ScreenAdminFailed:
		return show(c, textAdminFailed)
	}
	return nil
}
