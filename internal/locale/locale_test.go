package locale

import (
	"strings"
	"testing"
)

func TestResolveIsTotal(t *testing.T) {
	cases := []struct {
		in   string
		want Code
	}{
		{"zh-TW", ZhTW},
		{"ja", Ja},
		{"", ZhTW},
		{"en", ZhTW},
		{"fr-CA", ZhTW},
	}
	for _, tc := range cases {
		if got := Resolve(tc.in).Code; got != tc.want {
			t.Fatalf("Resolve(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestResolveTimezones(t *testing.T) {
	if tz := Resolve("ja").Timezone; tz != "Asia/Tokyo" {
		t.Fatalf("ja timezone: %s", tz)
	}
	if tz := Resolve("zh-TW").Timezone; tz != "Asia/Taipei" {
		t.Fatalf("zh-TW timezone: %s", tz)
	}
	if tz := Resolve("unknown").Timezone; tz != "Asia/Taipei" {
		t.Fatalf("fallback timezone: %s", tz)
	}
}

func TestIsLoginMessage(t *testing.T) {
	yes := []string{"登入", "LOGIN", "Login please", "ログイン", "我想登入帳號"}
	for _, m := range yes {
		if !IsLoginMessage(m) {
			t.Fatalf("%q should be a login message", m)
		}
	}
	no := []string{"300", "hello", "ログ", "今天喝很多水"}
	for _, m := range no {
		if IsLoginMessage(m) {
			t.Fatalf("%q should not be a login message", m)
		}
	}
}

func TestTableFormatters(t *testing.T) {
	for _, tab := range All() {
		if !strings.Contains(tab.ReplyTotal(500), "500") {
			t.Fatalf("%s: reply total should embed amount", tab.Code)
		}
		if !strings.Contains(tab.GeneralReply(1200), "1200") {
			t.Fatalf("%s: general reply should embed amount", tab.Code)
		}
		if !strings.Contains(tab.Remaining(300), "300") {
			t.Fatalf("%s: remaining should embed amount", tab.Code)
		}
		if tab.Welcome("小明") == "" || tab.Login() == "" || tab.LangSwitched() == "" || tab.TargetDone() == "" {
			t.Fatalf("%s: static messages must not be empty", tab.Code)
		}
	}
}
