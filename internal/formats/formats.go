package formats

import (
	"fmt"
	"strings"

	"github.com/BatmanBruc/convert-bot/internal/i18n"
	"github.com/BatmanBruc/convert-bot/internal/messages"
	"github.com/BatmanBruc/convert-bot/types"
)

// Operation names the converter entry point handling a route.
type Operation int

const (
	OpNone Operation = iota
	OpImage
	OpVideo
	OpPdfToDocx
	OpDocxToPdf
)

func (o Operation) String() string {
	switch o {
	case OpImage:
		return "image"
	case OpVideo:
		return "video"
	case OpPdfToDocx:
		return "pdf->docx"
	case OpDocxToPdf:
		return "docx->pdf"
	default:
		return "none"
	}
}

type FormatCategory struct {
	Category types.Category
	// UIKey is the callback token the chat menu uses for this category.
	UIKey   string
	Icon    string
	Formats []types.Format
}

type FormatButton struct {
	Text         string
	CallbackData string
}

type directedPair struct {
	from types.Format
	to   types.Format
}

// Registry is the static table of categories, allow-lists and routes.
type Registry struct {
	categories []FormatCategory
	byCategory map[types.Category]FormatCategory
	byUIKey    map[string]types.Category
	documents  map[directedPair]Operation
}

var defaultRegistry = newRegistry()

// Default returns the process-wide registry. It is immutable.
func Default() *Registry { return defaultRegistry }

func newRegistry() *Registry {
	cats := []FormatCategory{
		{
			Category: types.CategoryImage,
			UIKey:    "photo",
			Icon:     "📷",
			Formats:  []types.Format{types.FormatJPEG, types.FormatPNG, types.FormatBMP, types.FormatICO, types.FormatJFIF},
		},
		{
			Category: types.CategoryVideo,
			UIKey:    "video",
			Icon:     "📹",
			Formats:  []types.Format{types.FormatMP4, types.FormatAVI, types.FormatMOV, types.FormatWEBP, types.FormatMKV},
		},
		{
			Category: types.CategoryDocument,
			UIKey:    "file",
			Icon:     "💼",
			Formats:  []types.Format{types.FormatPDF, types.FormatDOCX},
		},
	}

	r := &Registry{
		categories: cats,
		byCategory: make(map[types.Category]FormatCategory, len(cats)),
		byUIKey:    make(map[string]types.Category, len(cats)),
		documents: map[directedPair]Operation{
			{from: types.FormatPDF, to: types.FormatDOCX}: OpPdfToDocx,
			{from: types.FormatDOCX, to: types.FormatPDF}: OpDocxToPdf,
		},
	}
	for _, c := range cats {
		r.byCategory[c.Category] = c
		r.byUIKey[c.UIKey] = c.Category
	}
	return r
}

func (r *Registry) Categories() []FormatCategory {
	out := make([]FormatCategory, len(r.categories))
	copy(out, r.categories)
	return out
}

// AllowedFormats returns the write targets of a category in menu order.
func (r *Registry) AllowedFormats(c types.Category) []types.Format {
	fc, ok := r.byCategory[c]
	if !ok {
		return nil
	}
	out := make([]types.Format, len(fc.Formats))
	copy(out, fc.Formats)
	return out
}

func (r *Registry) IsAllowed(c types.Category, f types.Format) bool {
	fc, ok := r.byCategory[c]
	if !ok {
		return false
	}
	for _, allowed := range fc.Formats {
		if allowed == f {
			return true
		}
	}
	return false
}

// ParseCategory accepts the chat menu tokens (photo, video, file) and the canonical names.
func (r *Registry) ParseCategory(s string) (types.Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := r.byUIKey[s]; ok {
		return c, true
	}
	c := types.Category(s)
	if _, ok := r.byCategory[c]; ok {
		return c, true
	}
	return "", false
}

func (r *Registry) UIKey(c types.Category) string {
	return r.byCategory[c].UIKey
}

// DocumentSource reports whether ext can start a directed document conversion.
func (r *Registry) DocumentSource(ext string) (types.Format, bool) {
	f, ok := types.ParseFormat(ext)
	if !ok {
		return "", false
	}
	for pair := range r.documents {
		if pair.from == f {
			return f, true
		}
	}
	return "", false
}

// Route resolves which converter operation handles a request. sourceExt only matters for
// documents; image and video sources are trusted to belong to the selected category.
func (r *Registry) Route(c types.Category, sourceExt string, target types.Format) (Operation, error) {
	if !c.Valid() {
		return OpNone, types.Errorf(types.KindUnsupportedFormat, "unknown category %q", c)
	}
	if !r.IsAllowed(c, target) {
		return OpNone, types.Errorf(types.KindUnsupportedFormat, "format %q is not available for %s", target, c)
	}

	switch c {
	case types.CategoryImage:
		return OpImage, nil
	case types.CategoryVideo:
		return OpVideo, nil
	}

	src, ok := r.DocumentSource(sourceExt)
	if !ok {
		return OpNone, types.Errorf(types.KindInvalidInput, "unsupported document type %q", types.NormalizeExt(sourceExt))
	}
	op, ok := r.documents[directedPair{from: src, to: target}]
	if !ok {
		return OpNone, types.Errorf(types.KindUnsupportedConversion, "%s to %s is not supported", src, target)
	}
	return op, nil
}

// VideoUploadFormats lists the containers accepted as video uploads. It is wider than the
// write targets: webm can be read but is not offered as a target.
func VideoUploadFormats() []string {
	return []string{"mp4", "avi", "mov", "webm", "mkv"}
}

// CategoryButtons returns the start menu buttons.
func (r *Registry) CategoryButtons(lang i18n.Lang) []FormatButton {
	buttons := make([]FormatButton, 0, len(r.categories))
	for _, c := range r.categories {
		buttons = append(buttons, FormatButton{
			Text:         messages.CategoryLabel(lang, string(c.Category)),
			CallbackData: c.UIKey,
		})
	}
	return buttons
}

// FormatButtons returns the format menu of a category. Callback data is "format_<token>".
func (r *Registry) FormatButtons(c types.Category) []FormatButton {
	formats := r.AllowedFormats(c)
	buttons := make([]FormatButton, 0, len(formats))
	for _, f := range formats {
		buttons = append(buttons, FormatButton{
			Text:         strings.ToUpper(string(f)),
			CallbackData: FormatCallbackPrefix + string(f),
		})
	}
	return buttons
}

const FormatCallbackPrefix = "format_"

// ParseFormatCallback extracts the format token from "format_<token>" callback data.
func ParseFormatCallback(data string) (string, bool) {
	data = strings.TrimSpace(data)
	if !strings.HasPrefix(data, FormatCallbackPrefix) {
		return "", false
	}
	token := strings.TrimPrefix(data, FormatCallbackPrefix)
	if token == "" {
		return "", false
	}
	return token, true
}

func (r *Registry) HelpMessage(lang i18n.Lang) string {
	var msg strings.Builder
	msg.WriteString(messages.HelpHeader(lang))
	msg.WriteString("\n")

	for _, c := range r.categories {
		tokens := make([]string, 0, len(c.Formats))
		for _, f := range c.Formats {
			tokens = append(tokens, strings.ToUpper(string(f)))
		}
		msg.WriteString(fmt.Sprintf("• %s <b>%s</b>\n", c.Icon, messages.Escape(messages.CategoryLabel(lang, string(c.Category)))))
		msg.WriteString("<code>")
		msg.WriteString(messages.Escape(strings.Join(tokens, ", ")))
		msg.WriteString("</code>\n")
		if c.Category == types.CategoryDocument {
			msg.WriteString(messages.HelpDocumentPairs(lang))
			msg.WriteString("\n")
		}
		msg.WriteString("\n")
	}

	msg.WriteString(messages.HelpUsage(lang))
	return msg.String()
}
