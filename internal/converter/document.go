package converter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/ledongthuc/pdf"

	"github.com/BatmanBruc/convert-bot/types"
)

// ConvertPdfToDocx extracts the text rows of every page, reflows them into paragraphs and
// writes them as a DOCX with one page break per PDF page.
func (c *DefaultConverter) ConvertPdfToDocx(ctx context.Context, inputPath string) (string, error) {
	if ext := inputExt(inputPath); ext != string(types.FormatPDF) {
		return "", types.Errorf(types.KindInvalidInput, "input is not a PDF: %q", ext)
	}

	pages, err := extractPDFPages(inputPath)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", types.Wrap(types.KindInternalError, err, "pdf conversion interrupted")
	}

	blocks := make([]docBlock, 0, len(pages)*4)
	for i, lines := range pages {
		if i > 0 {
			blocks = append(blocks, docBlock{PageBreak: true})
		}
		for _, p := range reflow(lines) {
			blocks = append(blocks, docBlock{Text: p})
		}
	}

	out, err := newOutput(inputPath, types.FormatDOCX)
	if err != nil {
		return "", err
	}
	defer out.abort()

	f, err := out.create()
	if err != nil {
		return "", err
	}
	if err := writeDocx(f, blocks); err != nil {
		_ = f.Close()
		return "", types.Wrap(types.KindCodecError, err, "write docx")
	}
	if err := f.Close(); err != nil {
		return "", types.Wrap(types.KindInternalError, err, "flush docx")
	}

	path, err := out.commit()
	if err != nil {
		return "", err
	}
	c.log.Debug("pdf converted", "pages", len(pages), "path", path)
	return path, nil
}

// textLine is one visual row of a PDF page.
type textLine struct {
	y    float64
	text string
}

func extractPDFPages(path string) (pages [][]textLine, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = types.Errorf(types.KindCodecError, "malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, types.Wrap(types.KindCodecError, err, "open pdf")
	}
	defer f.Close()

	n := r.NumPage()
	if n == 0 {
		return nil, types.Errorf(types.KindCodecError, "pdf has no pages")
	}

	pages = make([][]textLine, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, nil)
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return nil, types.Wrap(types.KindCodecError, err, "read page %d", i)
		}
		lines := make([]textLine, 0, len(rows))
		for _, row := range rows {
			var sb strings.Builder
			for _, t := range row.Content {
				sb.WriteString(t.S)
			}
			text := strings.TrimSpace(sb.String())
			if text == "" {
				continue
			}
			lines = append(lines, textLine{y: float64(row.Position), text: text})
		}
		sort.SliceStable(lines, func(a, b int) bool { return lines[a].y > lines[b].y })
		pages = append(pages, lines)
	}
	return pages, nil
}

// reflow joins consecutive rows into paragraphs. A vertical gap clearly larger than the
// usual line spacing starts a new paragraph; a trailing hyphen glues words back together.
func reflow(lines []textLine) []string {
	if len(lines) == 0 {
		return nil
	}

	gaps := make([]float64, 0, len(lines))
	for i := 1; i < len(lines); i++ {
		gaps = append(gaps, math.Abs(lines[i-1].y-lines[i].y))
	}
	limit := math.Inf(1)
	if len(gaps) > 0 {
		sorted := append([]float64(nil), gaps...)
		sort.Float64s(sorted)
		limit = sorted[len(sorted)/2] * 1.6
	}

	var (
		paragraphs []string
		cur        strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			paragraphs = append(paragraphs, s)
		}
		cur.Reset()
	}
	for i, l := range lines {
		if i > 0 && gaps[i-1] > limit {
			flush()
		}
		s := cur.String()
		switch {
		case s == "":
		case strings.HasSuffix(s, "-"):
			cur.Reset()
			cur.WriteString(strings.TrimSuffix(s, "-"))
		default:
			cur.WriteByte(' ')
		}
		cur.WriteString(l.text)
	}
	flush()
	return paragraphs
}

// ConvertDocxToPdf renders the document with the configured engine.
func (c *DefaultConverter) ConvertDocxToPdf(ctx context.Context, inputPath string) (string, error) {
	if ext := inputExt(inputPath); ext != string(types.FormatDOCX) {
		return "", types.Errorf(types.KindInvalidInput, "input is not a DOCX: %q", ext)
	}
	src, err := openInput(inputPath)
	if err != nil {
		return "", err
	}
	_ = src.Close()

	switch c.cfg.DocxRenderer {
	case RendererBasic:
		return c.renderDocxBasic(ctx, inputPath)
	case RendererLibreOffice:
		return c.renderDocxLibreOffice(ctx, inputPath)
	default:
		return "", types.Errorf(types.KindDependencyUnavailable, "unknown docx renderer %q", c.cfg.DocxRenderer)
	}
}

func (c *DefaultConverter) renderDocxLibreOffice(ctx context.Context, inputPath string) (string, error) {
	names := []string{c.cfg.SofficePath}
	if c.cfg.SofficePath == "soffice" {
		names = append(names, "libreoffice")
	}
	soffice, ok := c.lookPath(names...)
	if !ok {
		return "", types.Errorf(types.KindDependencyUnavailable, "LibreOffice is not installed")
	}

	out, err := newOutput(inputPath, types.FormatPDF)
	if err != nil {
		return "", err
	}
	defer out.abort()

	// A private output dir and profile let several soffice runs proceed at once.
	work, err := os.MkdirTemp(filepath.Dir(inputPath), ".soffice-*")
	if err != nil {
		return "", types.Wrap(types.KindInternalError, err, "create libreoffice work dir")
	}
	defer os.RemoveAll(work)
	profile := filepath.Join(work, "profile")

	ctx, cancel := context.WithTimeout(ctx, c.cfg.DocumentTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, soffice,
		"--headless", "--norestore", "--nolockcheck",
		"-env:UserInstallation=file://"+filepath.ToSlash(profile),
		"--convert-to", "pdf",
		"--outdir", work,
		inputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", types.Errorf(types.KindDependencyUnavailable, "LibreOffice did not finish within %s", c.cfg.DocumentTimeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", types.Errorf(types.KindCodecError, "LibreOffice failed: %s", tail(output, 400))
		}
		return "", types.Wrap(types.KindDependencyUnavailable, err, "start LibreOffice")
	}

	generated := filepath.Join(work, stemOf(inputPath)+".pdf")
	if _, err := os.Stat(generated); err != nil {
		return "", types.Errorf(types.KindCodecError, "LibreOffice produced no PDF: %s", tail(output, 400))
	}
	if err := os.Rename(generated, out.tmp); err != nil {
		return "", types.Wrap(types.KindInternalError, err, "move LibreOffice output")
	}

	path, err := out.commit()
	if err != nil {
		return "", err
	}
	c.log.Debug("docx rendered", "engine", RendererLibreOffice, "path", path)
	return path, nil
}

const basicFontFamily = "body"

// renderDocxBasic lays out the document text with gofpdf. It keeps paragraphs and page
// breaks but no styling.
func (c *DefaultConverter) renderDocxBasic(ctx context.Context, inputPath string) (string, error) {
	f, err := openInput(inputPath)
	if err != nil {
		return "", err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return "", types.Wrap(types.KindInvalidInput, err, "stat input")
	}
	blocks, err := readDocx(f, info.Size())
	_ = f.Close()
	if err != nil {
		return "", types.Wrap(types.KindCodecError, err, "read docx")
	}
	if err := ctx.Err(); err != nil {
		return "", types.Wrap(types.KindInternalError, err, "docx conversion interrupted")
	}

	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(20, 20, 20)
	doc.SetAutoPageBreak(true, 20)

	translate := func(s string) string { return s }
	if c.cfg.FontPath != "" {
		doc.AddUTF8Font(basicFontFamily, "", c.cfg.FontPath)
		doc.SetFont(basicFontFamily, "", 11)
	} else {
		doc.SetFont("Helvetica", "", 11)
		translate = doc.UnicodeTranslatorFromDescriptor("")
	}
	doc.AddPage()

	for _, blk := range blocks {
		if blk.PageBreak {
			doc.AddPage()
			continue
		}
		if strings.TrimSpace(blk.Text) == "" {
			doc.Ln(5)
			continue
		}
		doc.MultiCell(0, 5.5, translate(blk.Text), "", "L", false)
		doc.Ln(2)
	}
	if err := doc.Error(); err != nil {
		return "", types.Wrap(types.KindCodecError, err, "render pdf")
	}

	out, err := newOutput(inputPath, types.FormatPDF)
	if err != nil {
		return "", err
	}
	defer out.abort()

	if err := doc.OutputFileAndClose(out.tmp); err != nil {
		return "", types.Wrap(types.KindCodecError, fmt.Errorf("write pdf: %w", err), "render pdf")
	}

	path, err := out.commit()
	if err != nil {
		return "", err
	}
	c.log.Debug("docx rendered", "engine", RendererBasic, "paragraphs", len(blocks), "path", path)
	return path, nil
}
