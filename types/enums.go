package types

import "strings"

// Category is the top-level conversion domain a user picks before the target format.
type Category string

const (
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryDocument Category = "document"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryImage, CategoryVideo, CategoryDocument:
		return true
	}
	return false
}

func (c Category) String() string { return string(c) }

// Format is a lowercase extension-like output token.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatBMP  Format = "bmp"
	FormatICO  Format = "ico"
	FormatJFIF Format = "jfif"

	FormatMP4  Format = "mp4"
	FormatAVI  Format = "avi"
	FormatMOV  Format = "mov"
	FormatWEBP Format = "webp"
	FormatMKV  Format = "mkv"

	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

var knownFormats = map[Format]struct{}{
	FormatJPEG: {}, FormatPNG: {}, FormatBMP: {}, FormatICO: {}, FormatJFIF: {},
	FormatMP4: {}, FormatAVI: {}, FormatMOV: {}, FormatWEBP: {}, FormatMKV: {},
	FormatPDF: {}, FormatDOCX: {},
}

// formatAliases maps UI-facing spellings onto registry tokens.
var formatAliases = map[string]Format{
	"jpg": FormatJPEG,
	"jpe": FormatJPEG,
}

// NormalizeExt lowercases an extension and strips surrounding space and a leading dot.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// ParseFormat maps a free-form token onto a known Format, resolving aliases.
func ParseFormat(s string) (Format, bool) {
	s = NormalizeExt(s)
	if f, ok := formatAliases[s]; ok {
		return f, true
	}
	f := Format(s)
	if _, ok := knownFormats[f]; ok {
		return f, true
	}
	return "", false
}

func (f Format) String() string { return string(f) }

// Ext returns the file extension written for this format, with the dot.
func (f Format) Ext() string { return "." + string(f) }

// FormatSpec pairs a category with an output format.
type FormatSpec struct {
	Category Category `json:"category"`
	Format   Format   `json:"format"`
}

func (s FormatSpec) String() string { return string(s.Category) + "/" + string(s.Format) }

// Step is a state of the per-user selection flow.
type Step string

const (
	StepAwaitingCategory   Step = "awaiting_category"
	StepAwaitingFormat     Step = "awaiting_format"
	StepAwaitingFile       Step = "awaiting_file"
	StepAwaitingNextAction Step = "awaiting_next_action"
)

// NextAction is offered after a successful delivery.
type NextAction string

const (
	ActionReturnToCategory NextAction = "choose_category"
	ActionReuseSettings    NextAction = "same_settings"
)

func ParseNextAction(s string) (NextAction, bool) {
	switch NextAction(strings.TrimSpace(s)) {
	case ActionReturnToCategory:
		return ActionReturnToCategory, true
	case ActionReuseSettings:
		return ActionReuseSettings, true
	}
	return "", false
}
