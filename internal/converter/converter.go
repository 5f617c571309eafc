package converter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/BatmanBruc/convert-bot/types"
)

// Converter performs exactly one conversion per call and reports failures as *types.Error.
// Every successful call creates one new file next to the input; inputs are never modified.
type Converter interface {
	ConvertImage(ctx context.Context, inputPath string, format types.Format) (string, error)
	ConvertVideo(ctx context.Context, inputPath string, format types.Format) (string, error)
	ConvertPdfToDocx(ctx context.Context, inputPath string) (string, error)
	ConvertDocxToPdf(ctx context.Context, inputPath string) (string, error)
}

const (
	RendererLibreOffice = "libreoffice"
	RendererBasic       = "basic"
)

type Config struct {
	FFmpegPath  string
	SofficePath string
	// DocxRenderer selects the DOCX->PDF engine: RendererLibreOffice or RendererBasic.
	DocxRenderer string
	// FontPath is an optional TTF used by the basic renderer for non-Latin text.
	FontPath        string
	VideoTimeout    time.Duration
	DocumentTimeout time.Duration
	Logger          *slog.Logger
}

type DefaultConverter struct {
	cfg Config
	log *slog.Logger
}

func NewDefaultConverter(cfg Config) *DefaultConverter {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.SofficePath == "" {
		cfg.SofficePath = "soffice"
	}
	if cfg.DocxRenderer == "" {
		cfg.DocxRenderer = RendererLibreOffice
	}
	if cfg.VideoTimeout <= 0 {
		cfg.VideoTimeout = 5 * time.Minute
	}
	if cfg.DocumentTimeout <= 0 {
		cfg.DocumentTimeout = 2 * time.Minute
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &DefaultConverter{
		cfg: cfg,
		log: log.With("component", "converter"),
	}
}

func (c *DefaultConverter) lookPath(names ...string) (string, bool) {
	for _, name := range names {
		if name == "" {
			continue
		}
		if p, err := exec.LookPath(name); err == nil {
			return p, true
		}
	}
	return "", false
}

func openInput(inputPath string) (*os.File, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return nil, types.Wrap(types.KindInvalidInput, err, "cannot open input")
	}
	return f, nil
}

func inputExt(inputPath string) string {
	return types.NormalizeExt(filepath.Ext(inputPath))
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

const maxOutputSuffix = 1000

// pendingOutput is a reserved final path plus the temp file the result is written to.
// Nothing becomes visible at final until commit; abort removes both.
type pendingOutput struct {
	final     string
	tmp       string
	committed bool
}

// newOutput reserves "<stem>.<format>" next to the input, or "<stem>-N.<format>" when that
// name is taken (including when it is the input itself).
func newOutput(inputPath string, format types.Format) (*pendingOutput, error) {
	dir := filepath.Dir(inputPath)
	stem := stemOf(inputPath)
	in := filepath.Clean(inputPath)

	final := ""
	for i := 0; i < maxOutputSuffix && final == ""; i++ {
		name := stem + format.Ext()
		if i > 0 {
			name = fmt.Sprintf("%s-%d%s", stem, i, format.Ext())
		}
		p := filepath.Join(dir, name)
		if filepath.Clean(p) == in {
			continue
		}
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			return nil, types.Wrap(types.KindInternalError, err, "reserve output")
		}
		_ = f.Close()
		final = p
	}
	if final == "" {
		return nil, types.Errorf(types.KindInternalError, "no free output name for %s%s", stem, format.Ext())
	}

	tmp, err := os.CreateTemp(dir, "."+stem+"-*.part"+format.Ext())
	if err != nil {
		_ = os.Remove(final)
		return nil, types.Wrap(types.KindInternalError, err, "create temp output")
	}
	_ = tmp.Close()

	return &pendingOutput{final: final, tmp: tmp.Name()}, nil
}

func (o *pendingOutput) create() (*os.File, error) {
	f, err := os.OpenFile(o.tmp, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, types.Wrap(types.KindInternalError, err, "open temp output")
	}
	return f, nil
}

func (o *pendingOutput) commit() (string, error) {
	info, err := os.Stat(o.tmp)
	if err != nil {
		return "", types.Wrap(types.KindInternalError, err, "result file was not created")
	}
	if info.Size() == 0 {
		return "", types.Errorf(types.KindCodecError, "result file is empty")
	}
	if err := os.Rename(o.tmp, o.final); err != nil {
		return "", types.Wrap(types.KindInternalError, err, "move result into place")
	}
	o.committed = true
	return o.final, nil
}

func (o *pendingOutput) abort() {
	if o == nil || o.committed {
		return
	}
	_ = os.Remove(o.tmp)
	_ = os.Remove(o.final)
}

// tail keeps the last n runes of tool output for error messages.
func tail(out []byte, n int) string {
	s := strings.ToValidUTF8(strings.TrimSpace(string(out)), "\uFFFD")
	if r := []rune(s); len(r) > n {
		s = "…" + string(r[len(r)-n:])
	}
	return s
}

// ResultFileName is the name a result is delivered under: the original stem plus the new
// extension.
func ResultFileName(originalName string, format types.Format) string {
	ext := string(format)
	if ext == "" {
		ext = "bin"
	}

	originalName = strings.TrimSpace(originalName)
	if originalName == "" {
		return "converted." + ext
	}

	base := filepath.Base(originalName)
	if filepath.Ext(base) == "" {
		return base + "." + ext
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + "." + ext
}
