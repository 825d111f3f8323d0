package bot

import "testing"

func TestParseCommand(t *testing.T) {
	cases := []struct {
		text string
		want CommandKind
	}{
		{"/start", CmdStart},
		{"/startmamabot", CmdStartAdmin},
		{"/endmamabot", CmdEndAdmin},
		{"/random_meme", CmdRandomMeme},
		{"/subscribe", CmdSubscribe},
		{"/unsubscribe extra words", CmdUnsubscribe},
		{"привет бот", CmdFreeText},
		{"", CmdFreeText},
		{"  /random_meme", CmdRandomMeme},
	}
	for _, tc := range cases {
		got := ParseCommand(tc.text)
		if got.Kind != tc.want {
			t.Fatalf("%q: ожидали %d, получили %d", tc.text, tc.want, got.Kind)
		}
		if got.Text != tc.text {
			t.Fatalf("%q: команда должна сохранять исходный текст, получили %q", tc.text, got.Text)
		}
	}
}

func TestParseCallback(t *testing.T) {
	cases := []struct {
		data     string
		wantKind CallbackKind
		wantArg  string
	}{
		{"LIKE_MEME_abc123", CbLikeMeme, "abc123"},
		{"DISLIKE_MEME_abc123", CbDislikeMeme, "abc123"},
		// Кнопка шлёт аргумент через подчёркивание, диалог подтверждения —
		// через пробел; префиксное сопоставление узнаёт обе формы.
		{"DELETE_MEME_abc123", CbDeleteMeme, "abc123"},
		{"DELETE_MEME abc123", CbDeleteMeme, "abc123"},
		{"CONFIRM_DELETE_MEME abc123", CbConfirmDeleteMeme, "abc123"},
		{"NOT_DELETE_MEME 42", CbNotDeleteMeme, "42"},
		{"SEND 550e8400-e29b-41d4-a716-446655440000", CbSend, "550e8400-e29b-41d4-a716-446655440000"},
		{"CONFIRM_SEND_TO_SUBSCRIBERS 550e8400", CbConfirmSend, "550e8400"},
		{"LIST_RECIPIENTS", CbListRecipients, ""},
		{"LIST_RECIPIENTS_EXTRA", CbListRecipients, ""},
		{"SOMETHING_ELSE", CbUnknown, ""},
	}
	for _, tc := range cases {
		got := ParseCallback(tc.data)
		if got.Kind != tc.wantKind {
			t.Fatalf("%q: ожидали kind %d, получили %d", tc.data, tc.wantKind, got.Kind)
		}
		if got.Arg != tc.wantArg {
			t.Fatalf("%q: ожидали аргумент %q, получили %q", tc.data, tc.wantArg, got.Arg)
		}
	}
}

func TestParseCallbackConfirmBeforeSend(t *testing.T) {
	// CONFIRM_SEND_TO_SUBSCRIBERS не должен попадать в ветку SEND.
	got := ParseCallback("CONFIRM_SEND_TO_SUBSCRIBERS id-1")
	if got.Kind != CbConfirmSend {
		t.Fatalf("ожидали CbConfirmSend, получили %d", got.Kind)
	}
}
