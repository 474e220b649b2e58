// Package locale holds the per-language message tables for the bot.
// Resolution is total: any unknown or empty language code falls back to
// Traditional Chinese, the bot's home locale.
package locale

import (
	"fmt"
	"strings"
)

// Code is a tagged locale identifier, not a raw BCP-47 string.
type Code string

const (
	ZhTW Code = "zh-TW"
	Ja   Code = "ja"
)

const siteURL = "https://water-record.web.app/"

// Table is the full formatter set for one locale.
type Table struct {
	Code          Code
	Timezone      string
	LoginKeywords []string

	welcome      func(displayName string) string
	login        string
	generalReply func(totalDrank int64) string
	replyTotal   func(totalDrank int64) string
	remaining    func(remaining int64) string
	targetDone   string
	langSwitched string
}

func (t Table) Welcome(displayName string) string {
	return t.welcome(displayName)
}

func (t Table) Login() string { return t.login }

func (t Table) GeneralReply(totalDrank int64) string {
	return t.generalReply(totalDrank)
}

func (t Table) ReplyTotal(totalDrank int64) string {
	return t.replyTotal(totalDrank)
}

func (t Table) Remaining(remaining int64) string {
	return t.remaining(remaining)
}

func (t Table) TargetDone() string { return t.targetDone }

func (t Table) LangSwitched() string { return t.langSwitched }

var zhTW = Table{
	Code:          ZhTW,
	Timezone:      "Asia/Taipei",
	LoginKeywords: []string{"登入", "login", "ログイン"},
	welcome: func(name string) string {
		return fmt.Sprintf("歡迎加入！ようこそ！%s\n\n\"JP\" を入力して日本語に切り替え\n輸入 \"TW\" 切換成中文💓\n\n請點擊下方連結，完成帳戶連結\nリンクをクリックして、LINEアカウントを連携しましょう\n%s", name, siteURL)
	},
	login: fmt.Sprintf("🔐 LINE 登入\n\n請點擊以下連結來連結您的 LINE 帳戶：\n%s\n\n💡 \"JP\" を入力して日本語に切り替え\n輸入 \"TW\" 切換成中文💓", siteURL),
	generalReply: func(total int64) string {
		return fmt.Sprintf("🔺今日已喝%dmL🤩💓🥛繼續加油唷😘\n\n💡 輸入「登入」可以連結視覺化網站跟 LINE 帳戶！\n🧑‍💻 輸入一個數字就可以自動幫你紀錄喝水量唷！", total)
	},
	replyTotal: func(total int64) string {
		return fmt.Sprintf("🔺今日已喝%dmL🤩💓", total)
	},
	remaining: func(remaining int64) string {
		return fmt.Sprintf("💧 今天還差%dmL就達標囉，加油！", remaining)
	},
	targetDone:   "🎉 今日目標達成！超棒的，明天繼續保持💓",
	langSwitched: "✅ 語言已切換為中文。",
}

var ja = Table{
	Code:          Ja,
	Timezone:      "Asia/Tokyo",
	LoginKeywords: []string{"登入", "login", "ログイン"},
	welcome: func(name string) string {
		return fmt.Sprintf("ようこそ！%s\n\n\"JP\" を入力して日本語に切り替え\n輸入 \"TW\" 切換成中文💓\n\nリンクをクリックして、LINEアカウントを連携しましょう\n%s", name, siteURL)
	},
	login: fmt.Sprintf("🔐 LINE ログイン\n\n以下のリンクをクリックしてLINEアカウントを連携しましょう：\n%s\n\n💡 \"JP\" を入力して日本語に切り替え\n輸入 \"TW\" 切換成中文💓", siteURL),
	generalReply: func(total int64) string {
		return fmt.Sprintf("🔺今日の飲水量: %dmL🤩💓🥛この調子で頑張っていこうね😘\n\n💡 「ログイン」と入力すると、可視化サイトとLINEアカウントを連携できます！\n🧑‍💻 数字を入力すると、自動的に飲水量を記録します！", total)
	},
	replyTotal: func(total int64) string {
		return fmt.Sprintf("🔺今日の飲水量: %dmL🤩💓", total)
	},
	remaining: func(remaining int64) string {
		return fmt.Sprintf("💧 目標まであと%dmL、頑張ろう！", remaining)
	},
	targetDone:   "🎉 今日の目標達成！えらい、明日もこの調子で💓",
	langSwitched: "✅ 言語を日本語に切り替えました。",
}

var tables = map[Code]Table{
	ZhTW: zhTW,
	Ja:   ja,
}

// Resolve maps a stored language code to its table. Unknown codes fall
// back to zh-TW so callers never handle a missing locale.
func Resolve(code string) Table {
	if t, ok := tables[Code(code)]; ok {
		return t
	}
	return zhTW
}

// All returns every supported table.
func All() []Table {
	return []Table{zhTW, ja}
}

// IsLoginMessage reports whether the text is a login request in any
// supported locale. Matching is case-insensitive substring membership
// over the union of all locales' keywords.
func IsLoginMessage(text string) bool {
	lowered := strings.ToLower(text)
	for _, t := range tables {
		for _, kw := range t.LoginKeywords {
			if strings.Contains(lowered, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}
