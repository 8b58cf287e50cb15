package bot

import (
	"context"

	tele "gopkg.in/telebot.v4"
)

// memberLookup is the subset of *tele.Bot used for membership checks.
type memberLookup interface {
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
}

// channelMembership asks Telegram whether a user belongs to the sponsor
// channel. The bot must be an administrator there.
type channelMembership struct {
	bot  memberLookup
	chat tele.Recipient
}

func (m channelMembership) IsMember(_ context.Context, userID int64) (bool, error) {
	member, err := m.bot.ChatMemberOf(m.chat, &tele.User{ID: userID})
	if err != nil {
		return false, err
	}
	switch member.Role {
	case tele.Creator, tele.Administrator, tele.Member:
		return true, nil
	}
	return false, nil
}
