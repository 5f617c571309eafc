package messages

import (
	"fmt"
	"strings"

	"github.com/BatmanBruc/convert-bot/internal/i18n"
	"github.com/BatmanBruc/convert-bot/types"
)

const ParseModeHTML = "HTML"

func Escape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(strings.TrimSpace(s))
}

var (
	txtChooseCategory = i18n.Text{RU: "Выберите категорию для конвертации:", EN: "Choose a conversion category:"}
	txtChooseFormat   = i18n.Text{RU: "Выберите формат конвертации:", EN: "Choose the target format:"}
	txtSendFile       = i18n.Text{RU: "Теперь отправьте файл для конвертации.", EN: "Now send the file to convert."}
	txtSelectFirst    = i18n.Text{RU: "Пожалуйста, сначала выберите категорию и формат.", EN: "Please choose a category and a format first."}
	txtFileNotFound   = i18n.Text{RU: "Файл не найден. Пожалуйста, отправьте корректный файл.", EN: "No file found. Please send a valid file."}
	txtNextAction     = i18n.Text{RU: "Что вы хотите сделать дальше?", EN: "What would you like to do next?"}
	txtBtnBack        = i18n.Text{RU: "Вернуться", EN: "Back"}
	txtBtnSame        = i18n.Text{RU: "Использовать те же настройки", EN: "Use the same settings"}
	txtErrorDefault   = i18n.Text{RU: "🚫 <b>Ошибка</b>\nПопробуйте ещё раз.", EN: "🚫 <b>Error</b>\nPlease try again."}
	txtUnsupportedMsg = i18n.Text{RU: "🤖 <b>Я так не умею</b>\nОтправьте файл или нажмите /start.", EN: "🤖 <b>I can't handle that</b>\nSend a file or press /start."}
	txtUnknownCommand = i18n.Text{RU: "❓ <b>Команда не найдена</b>", EN: "❓ <b>Unknown command</b>"}
	txtFileWord       = i18n.Text{RU: "файл", EN: "file"}
	txtFileLabel      = i18n.Text{RU: "Файл", EN: "File"}
)

var categoryLabels = map[string]i18n.Text{
	string(types.CategoryImage):    {RU: "Фото", EN: "Photo"},
	string(types.CategoryVideo):    {RU: "Видео", EN: "Video"},
	string(types.CategoryDocument): {RU: "Файл", EN: "File"},
}

func CategoryLabel(lang i18n.Lang, category string) string {
	if t, ok := categoryLabels[category]; ok {
		return t.In(lang)
	}
	return category
}

func ChooseCategory(lang i18n.Lang) string { return txtChooseCategory.In(lang) }

func ChooseFormat(lang i18n.Lang) string { return txtChooseFormat.In(lang) }

func SendFile(lang i18n.Lang) string { return txtSendFile.In(lang) }

func SelectCategoryAndFormatFirst(lang i18n.Lang) string { return txtSelectFirst.In(lang) }

func FileNotFound(lang i18n.Lang) string { return txtFileNotFound.In(lang) }

func NextActionPrompt(lang i18n.Lang) string { return txtNextAction.In(lang) }

func BtnBack(lang i18n.Lang) string { return txtBtnBack.In(lang) }

func BtnSameSettings(lang i18n.Lang) string { return txtBtnSame.In(lang) }

func ErrorDefault(lang i18n.Lang) string { return txtErrorDefault.In(lang) }

func ErrorUnsupportedMessageType(lang i18n.Lang) string { return txtUnsupportedMsg.In(lang) }

func ErrorUnknownCommand(lang i18n.Lang) string { return txtUnknownCommand.In(lang) }

func FormatSelected(lang i18n.Lang, format string) string {
	f := Escape(strings.ToUpper(format))
	if lang == i18n.EN {
		return fmt.Sprintf("Selected format: <b>%s</b>. %s", f, SendFile(lang))
	}
	return fmt.Sprintf("Выбран формат: <b>%s</b>. %s", f, SendFile(lang))
}

func InvalidSelection(lang i18n.Lang, format string) string {
	f := Escape(strings.ToUpper(format))
	if lang == i18n.EN {
		return fmt.Sprintf("⚠️ Format <b>%s</b> is not available for this category.", f)
	}
	return fmt.Sprintf("⚠️ Формат <b>%s</b> недоступен для этой категории.", f)
}

func FileLine(lang i18n.Lang, fileName string) string {
	name := strings.TrimSpace(fileName)
	if name == "" {
		name = txtFileWord.In(lang)
	}
	return fmt.Sprintf("📄 <b>%s:</b> %s", txtFileLabel.In(lang), Escape(name))
}

func QueueQueued(lang i18n.Lang, fileName string, position int) string {
	if lang == i18n.EN {
		return fmt.Sprintf("⏳ <b>Queued:</b> %d\n%s", position, FileLine(lang, fileName))
	}
	return fmt.Sprintf("⏳ <b>В очереди:</b> %d\n%s", position, FileLine(lang, fileName))
}

func QueueStarted(lang i18n.Lang, fileName string) string {
	if lang == i18n.EN {
		return "⚙️ <b>Conversion started</b>\n" + FileLine(lang, fileName)
	}
	return "⚙️ <b>Конвертация началась</b>\n" + FileLine(lang, fileName)
}

// FileTooLarge is sent before queueing an upload the Bot API will not let the bot download.
func FileTooLarge(lang i18n.Lang, fileName string, limitMB int64) string {
	if lang == i18n.EN {
		return fmt.Sprintf("📦 <b>The file is too large</b>\n%s\nBots can download files up to %d MB.", FileLine(lang, fileName), limitMB)
	}
	return fmt.Sprintf("📦 <b>Файл слишком большой</b>\n%s\nБот может скачать файл не больше %d МБ.", FileLine(lang, fileName), limitMB)
}

func QueueFull(lang i18n.Lang) string {
	if lang == i18n.EN {
		return "⏳ <b>The queue is full</b>\nPlease try again in a minute."
	}
	return "⏳ <b>Очередь переполнена</b>\nПопробуйте через минуту."
}

var kindReasons = map[types.Kind]i18n.Text{
	types.KindInvalidInput:          {RU: "файл не подходит для выбранной конвертации", EN: "the file does not fit the selected conversion"},
	types.KindUnsupportedFormat:     {RU: "формат не поддерживается", EN: "the format is not supported"},
	types.KindUnsupportedConversion: {RU: "такая конвертация не поддерживается (доступно только PDF → DOCX и DOCX → PDF)", EN: "this conversion is not supported (only PDF → DOCX and DOCX → PDF)"},
	types.KindInvalidSelection:      {RU: "сначала выберите категорию и формат", EN: "choose a category and a format first"},
	types.KindCodecError:            {RU: "не удалось прочитать или записать файл", EN: "the file could not be decoded or encoded"},
	types.KindDependencyUnavailable: {RU: "сервис конвертации временно недоступен", EN: "the conversion engine is temporarily unavailable"},
	types.KindInternalError:         {RU: "внутренняя ошибка", EN: "internal error"},
}

// ConversionFailed renders a failure in one short message; detail is optional.
func ConversionFailed(lang i18n.Lang, fileName string, kind types.Kind, detail string) string {
	reason, ok := kindReasons[kind]
	if !ok {
		reason = kindReasons[types.KindInternalError]
	}
	title := "🚫 <b>Ошибка конвертации</b>"
	retry := "Отправьте другой файл или выберите другой формат."
	if lang == i18n.EN {
		title = "🚫 <b>Conversion failed</b>"
		retry = "Send another file or pick another format."
	}
	msg := title + "\n" + FileLine(lang, fileName) + "\n" + Escape(reason.In(lang))
	if detail = strings.TrimSpace(detail); detail != "" && kind != types.KindInternalError {
		detail = truncateRunes(strings.ToValidUTF8(detail, "\uFFFD"), 300)
		msg += fmt.Sprintf("\n<code>%s</code>", Escape(detail))
	}
	return msg + "\n\n" + retry
}

// truncateRunes cuts s to at most n runes, never inside a multi-byte character.
func truncateRunes(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "…"
	}
	return s
}

func HelpHeader(lang i18n.Lang) string {
	if lang == i18n.EN {
		return "ℹ️ <b>Supported formats</b>\n"
	}
	return "ℹ️ <b>Поддерживаемые форматы</b>\n"
}

func HelpDocumentPairs(lang i18n.Lang) string {
	if lang == i18n.EN {
		return "<i>only PDF → DOCX and DOCX → PDF</i>"
	}
	return "<i>только PDF → DOCX и DOCX → PDF</i>"
}

func HelpUsage(lang i18n.Lang) string {
	if lang == i18n.EN {
		return "🧭 <b>Usage</b>\n1) /start and pick a category\n2) Pick the target format\n3) Send the file"
	}
	return "🧭 <b>Использование</b>\n1) /start и выберите категорию\n2) Выберите формат\n3) Отправьте файл"
}

func Stats(lang i18n.Lang, s *types.UserStats) string {
	if s == nil || s.Total == 0 {
		if lang == i18n.EN {
			return "📊 You have not converted anything yet."
		}
		return "📊 Вы ещё ничего не конвертировали."
	}
	var b strings.Builder
	if lang == i18n.EN {
		b.WriteString(fmt.Sprintf("📊 <b>Conversions:</b> %d\n✅ succeeded: %d\n🚫 failed: %d\n", s.Total, s.Succeeded, s.Failed))
	} else {
		b.WriteString(fmt.Sprintf("📊 <b>Конвертаций:</b> %d\n✅ успешно: %d\n🚫 с ошибкой: %d\n", s.Total, s.Succeeded, s.Failed))
	}
	for _, c := range []types.Category{types.CategoryImage, types.CategoryVideo, types.CategoryDocument} {
		if n := s.ByCategory[c]; n > 0 {
			b.WriteString(fmt.Sprintf("• %s: %d\n", CategoryLabel(lang, string(c)), n))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func StatsUnavailable(lang i18n.Lang) string {
	if lang == i18n.EN {
		return "📊 Statistics are not enabled."
	}
	return "📊 Статистика не включена."
}
