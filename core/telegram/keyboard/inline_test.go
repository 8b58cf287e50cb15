package keyboard

import "testing"

func TestGridWrapsAndAppendsFooter(t *testing.T) {
	rm := Grid([]Button{
		Callback("a", "op", "1"),
		Callback("b", "op", "2"),
		Callback("c", "op", "3"),
	}, 2, []Button{Callback("cancel", "cancel", "")})

	if got := len(rm.InlineKeyboard); got != 3 {
		t.Fatalf("rows = %d, want 3", got)
	}
	if len(rm.InlineKeyboard[0]) != 2 || len(rm.InlineKeyboard[1]) != 1 {
		t.Fatalf("unexpected layout: %+v", rm.InlineKeyboard)
	}
	if b := rm.InlineKeyboard[0][1]; b.Unique != "op" || b.Data != "2" {
		t.Fatalf("callback button = %+v", b)
	}
	if b := rm.InlineKeyboard[2][0]; b.Unique != "cancel" {
		t.Fatalf("footer button = %+v", b)
	}
}

func TestInlineSkipsEmptyRows(t *testing.T) {
	rm := Inline(
		[]Button{Link("join", "https://t.me/sponsor")},
		nil,
		[]Button{Callback("done", "check_join", "")},
	)
	if len(rm.InlineKeyboard) != 2 {
		t.Fatalf("empty rows must be skipped: %+v", rm.InlineKeyboard)
	}
	if rm.InlineKeyboard[0][0].URL != "https://t.me/sponsor" {
		t.Fatalf("url button = %+v", rm.InlineKeyboard[0][0])
	}
	if rm.InlineKeyboard[1][0].Unique != "check_join" {
		t.Fatalf("data button = %+v", rm.InlineKeyboard[1][0])
	}
}

func TestGridZeroPerRow(t *testing.T) {
	rm := Grid([]Button{Callback("a", "x", ""), Callback("b", "x", "")}, 0)
	if len(rm.InlineKeyboard) != 2 {
		t.Fatalf("perRow 0 should fall back to one per row: %+v", rm.InlineKeyboard)
	}
}
