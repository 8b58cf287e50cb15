package bot

import (
	"fmt"
	"strings"

	"github.com/m3rciful/proxyrelay/core/telegram/format"
	"github.com/m3rciful/proxyrelay/relay/flow"
	"github.com/m3rciful/proxyrelay/relay/validate"
)

const (
	textWelcome        = "✅ به ربات خوش آمدید.\n\nیکی از گزینه‌ها را انتخاب کنید:"
	textMenu           = "منوی اصلی:"
	textNotJoined      = "❌ هنوز در کانال عضو نشدید. پس از عضویت روی دکمه زیر بزنید."
	textStartHint      = "برای شروع /start را بزنید و در کانال اسپانسر عضو شوید."
	textBanned         = "⛔ دسترسی شما به ربات مسدود شده است."
	textDisabled       = "⏸ ربات در حال حاضر غیرفعال است. لطفاً بعداً تلاش کنید."
	textAskOperator    = "با چه اینترنتی متصل بودید؟"
	textEmptyName      = "❌ نام نمی‌تواند خالی باشد."
	textDeliveryFailed = "❌ ارسال به کانال با خطا مواجه شد. لطفاً بعداً تلاش کنید."
	textCancelled      = "❎ ارسال لغو شد."
	textRateLimited    = "⏳ لطفاً کمی صبر کنید."
	textAdminFailed    = "❌ ذخیره تغییرات با خطا مواجه شد."

	buttonSendConfig = "📤 ارسال کانفیگ"
	buttonSendProxy  = "📤 ارسال پروکسی"
	buttonJoin       = "عضویت در کانال"
	buttonJoined     = "✅ عضو شدم"
	buttonCancel     = "❌ لغو"
)

func kindNoun(kind validate.Kind) string {
	if kind == validate.Proxy {
		return "پروکسی"
	}
	return "کانفیگ"
}

func joinText(sponsor string) string {
	return "👋 برای استفاده از ربات، ابتدا در کانال اسپانسر ما عضو شوید:\n\n" +
		"➡️ @" + format.EscapeHTML(sponsor) + "\n\n" +
		"بعد از عضویت روی /start بزنید."
}

func askNameText(kind validate.Kind) string {
	return fmt.Sprintf("نامی که دوست دارید این %s با آن منتشر شود را بنویسید (مثلاً آیدی کانال یا یک نام دلخواه):", kindNoun(kind))
}

func askPayloadText(kind validate.Kind) string {
	if kind == validate.Proxy {
		return "📤 پروکسی تلگرام خود را ارسال کنید (یک پیام)."
	}
	return "📤 یک لینک یا متن کانفیگ V2Ray خود را ارسال کنید (یک پیام)."
}

func invalidPayloadText(kind validate.Kind) string {
	if kind == validate.Proxy {
		return "لطفاً پروکسی تلگرام را ارسال کنید."
	}
	return "لطفاً یک کانفیگ V2Ray معتبر ارسال کنید."
}

func publishedText(kind validate.Kind) string {
	return fmt.Sprintf("✅ %s شما با موفقیت در کانال ثبت شد.", kindNoun(kind))
}

func statusText(st *flow.Status) string {
	state := "✅ فعال"
	if !st.Enabled {
		state = "⏸ غیرفعال"
	}
	banned := "-"
	if len(st.Banned) > 0 {
		ids := make([]string, len(st.Banned))
		for i, id := range st.Banned {
			ids[i] = fmt.Sprint(id)
		}
		banned = strings.Join(ids, ", ")
	}
	return format.Lines(
		format.Bold("وضعیت ربات"),
		"وضعیت: "+state,
		fmt.Sprintf("کاربران مسدود (%d): %s", len(st.Banned), format.Code(banned)),
		fmt.Sprintf("ارسال‌های باز: %d", st.OpenSubmissions),
	)
}

func adminDoneText(r flow.Reply) string {
	switch r.Action {
	case flow.ActionEnable:
		return "✅ ربات فعال شد."
	case flow.ActionDisable:
		return "⏸ ربات غیرفعال شد."
	case flow.ActionBan:
		return fmt.Sprintf("⛔ کاربر %s مسدود شد.", format.Code(fmt.Sprint(r.Target)))
	case flow.ActionUnban:
		return fmt.Sprintf("✅ کاربر %s آزاد شد.", format.Code(fmt.Sprint(r.Target)))
	}
	return "✅"
}

func adminUsageText(action string) string {
	return fmt.Sprintf("استفاده: %s", format.Code("/"+action+" <user_id>"))
}
