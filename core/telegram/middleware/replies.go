package middleware

import tele "gopkg.in/telebot.v4"

const repliesKey = "replies"

// replies is what a handler sent back while serving one update.
type replies struct {
	count    int
	keyboard bool
}

func (r *replies) track(err error, opts []interface{}) error {
	if err != nil {
		return err
	}
	r.count++
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			r.keyboard = r.keyboard || (v != nil && v.ReplyMarkup != nil)
		case *tele.ReplyMarkup:
			r.keyboard = r.keyboard || v != nil
		}
	}
	return nil
}

// countingContext counts successful sends and edits.
type countingContext struct {
	tele.Context
	r *replies
}

func (c countingContext) Send(what interface{}, opts ...interface{}) error {
	return c.r.track(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what interface{}, opts ...interface{}) error {
	return c.r.track(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what interface{}, opts ...interface{}) error {
	return c.r.track(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return c.r.track(c.Context.EditOrSend(what, opts...), opts)
}

func (c countingContext) EditOrReply(what interface{}, opts ...interface{}) error {
	return c.r.track(c.Context.EditOrReply(what, opts...), opts)
}

// CountReplies records how many messages the handler sent and whether any
// carried a keyboard. Read the result with Replies.
func CountReplies(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		r := &replies{}
		c.Set(repliesKey, r)
		return next(countingContext{Context: c, r: r})
	}
}

// Replies returns the counters recorded by CountReplies for c.
func Replies(c tele.Context) (int, bool) {
	if r, ok := c.Get(repliesKey).(*replies); ok {
		return r.count, r.keyboard
	}
	return 0, false
}
