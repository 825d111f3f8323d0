package bot

import "strings"

// CommandKind — типизированная текстовая команда.
type CommandKind int

const (
	// CmdFreeText — сообщение без известной команды. В админском режиме это
	// черновик рассылки, в обычном — запрос подсказки.
	CmdFreeText CommandKind = iota
	CmdStart
	CmdStartAdmin
	CmdEndAdmin
	CmdRandomMeme
	CmdSubscribe
	CmdUnsubscribe
)

// Command — результат разбора текстового сообщения. Text хранит исходное
// сообщение целиком: для черновика рассылки нужен весь текст, не хвост после
// команды.
type Command struct {
	Kind CommandKind
	Text string
}

var commandLookup = map[string]CommandKind{
	"/start":        CmdStart,
	"/startmamabot": CmdStartAdmin,
	"/endmamabot":   CmdEndAdmin,
	"/random_meme":  CmdRandomMeme,
	"/subscribe":    CmdSubscribe,
	"/unsubscribe":  CmdUnsubscribe,
}

// ParseCommand выбирает обработчик по первому пробельному токену сообщения.
func ParseCommand(text string) Command {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{Kind: CmdFreeText, Text: text}
	}
	if kind, ok := commandLookup[fields[0]]; ok {
		return Command{Kind: kind, Text: text}
	}
	return Command{Kind: CmdFreeText, Text: text}
}

// CallbackKind — типизированное callback-действие.
type CallbackKind int

const (
	CbUnknown CallbackKind = iota
	CbDeleteMeme
	CbConfirmDeleteMeme
	CbNotDeleteMeme
	CbSend
	CbConfirmSend
	CbListRecipients
	CbLikeMeme
	CbDislikeMeme
)

// CallbackAction — результат разбора callback-данных. Arg — единственный
// аргумент действия (идентификатор текста, мема или сообщения).
type CallbackAction struct {
	Kind CallbackKind
	Arg  string
}

// ParseCallback разбирает callback-данные в типизированное действие.
// Сопоставление намеренно префиксное, а не потокенное: аргумент может быть
// пришит к verb-у и пробелом ("SEND <id>"), и подчёркиванием
// ("LIKE_MEME_<id>"), и точное сравнение токенов молча перестало бы узнавать
// вторую форму. Порядок проверок важен: более длинные verb-ы идут раньше
// своих префиксов.
func ParseCallback(data string) CallbackAction {
	switch {
	case strings.HasPrefix(data, "CONFIRM_SEND_TO_SUBSCRIBERS"):
		return CallbackAction{Kind: CbConfirmSend, Arg: stripVerb(data, "CONFIRM_SEND_TO_SUBSCRIBERS")}
	case strings.HasPrefix(data, "CONFIRM_DELETE_MEME"):
		return CallbackAction{Kind: CbConfirmDeleteMeme, Arg: stripVerb(data, "CONFIRM_DELETE_MEME")}
	case strings.HasPrefix(data, "NOT_DELETE_MEME"):
		return CallbackAction{Kind: CbNotDeleteMeme, Arg: stripVerb(data, "NOT_DELETE_MEME")}
	case strings.HasPrefix(data, "DISLIKE_MEME_"):
		return CallbackAction{Kind: CbDislikeMeme, Arg: strings.TrimPrefix(data, "DISLIKE_MEME_")}
	case strings.HasPrefix(data, "LIKE_MEME_"):
		return CallbackAction{Kind: CbLikeMeme, Arg: strings.TrimPrefix(data, "LIKE_MEME_")}
	case strings.HasPrefix(data, "DELETE_MEME"):
		return CallbackAction{Kind: CbDeleteMeme, Arg: stripVerb(data, "DELETE_MEME")}
	case strings.HasPrefix(data, "SEND"):
		return CallbackAction{Kind: CbSend, Arg: stripVerb(data, "SEND")}
	case strings.HasPrefix(data, "LIST_RECIPIENTS"):
		return CallbackAction{Kind: CbListRecipients}
	default:
		return CallbackAction{Kind: CbUnknown}
	}
}

func stripVerb(data, verb string) string {
	return strings.TrimLeft(strings.TrimPrefix(data, verb), " _")
}
