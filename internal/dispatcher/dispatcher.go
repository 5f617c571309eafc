package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BatmanBruc/convert-bot/internal/converter"
	"github.com/BatmanBruc/convert-bot/internal/formats"
	"github.com/BatmanBruc/convert-bot/types"
)

// Dispatcher validates a request against the registry, routes it to one converter
// operation and guarantees every failure is a *types.Error.
type Dispatcher struct {
	registry  *formats.Registry
	converter converter.Converter
	log       *slog.Logger
}

func New(registry *formats.Registry, conv converter.Converter, log *slog.Logger) *Dispatcher {
	if registry == nil {
		registry = formats.Default()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		registry:  registry,
		converter: conv,
		log:       log.With("component", "dispatcher"),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, req types.ConversionRequest) (res *types.Result, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = types.Errorf(types.KindInternalError, "converter panic: %v", r)
		}
		if err != nil {
			err = normalize(err)
			d.log.Warn("conversion failed",
				"target", req.Target.String(),
				"input", filepath.Base(req.InputPath),
				"kind", types.KindOf(err),
				"error", err,
				"elapsed", time.Since(start),
			)
			return
		}
		d.log.Info("conversion finished",
			"target", req.Target.String(),
			"input", filepath.Base(req.InputPath),
			"output", filepath.Base(res.OutputPath),
			"elapsed", time.Since(start),
		)
	}()

	op, err := d.registry.Route(req.Target.Category, sourceExt(req), req.Target.Format)
	if err != nil {
		return nil, err
	}
	if err := checkInput(req.InputPath); err != nil {
		return nil, err
	}

	var out string
	switch op {
	case formats.OpImage:
		out, err = d.converter.ConvertImage(ctx, req.InputPath, req.Target.Format)
	case formats.OpVideo:
		out, err = d.converter.ConvertVideo(ctx, req.InputPath, req.Target.Format)
	case formats.OpPdfToDocx, formats.OpDocxToPdf:
		input, cleanup, lerr := withSourceExt(req.InputPath, sourceExt(req))
		if lerr != nil {
			return nil, lerr
		}
		defer cleanup()
		if op == formats.OpPdfToDocx {
			out, err = d.converter.ConvertPdfToDocx(ctx, input)
		} else {
			out, err = d.converter.ConvertDocxToPdf(ctx, input)
		}
	default:
		return nil, types.Errorf(types.KindInternalError, "no converter for route %s", op)
	}
	if err != nil {
		return nil, err
	}

	name := req.OriginalName
	if name == "" {
		name = filepath.Base(req.InputPath)
	}
	return &types.Result{
		OutputPath: out,
		FileName:   converter.ResultFileName(name, req.Target.Format),
	}, nil
}

// sourceExt prefers the extension of the original upload name; the local path may have been
// renamed by the transport.
func sourceExt(req types.ConversionRequest) string {
	if ext := filepath.Ext(req.OriginalName); ext != "" {
		return ext
	}
	return filepath.Ext(req.InputPath)
}

// withSourceExt returns a path to the input that carries ext, so the document converters
// and LibreOffice see the same type the route was chosen by. When the local name already
// has it the input is used as is; otherwise a sibling hard link (or copy) is created and
// cleanup removes it.
func withSourceExt(path, ext string) (string, func(), error) {
	want := types.NormalizeExt(ext)
	if types.NormalizeExt(filepath.Ext(path)) == want {
		return path, func() {}, nil
	}
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	for i := 0; i < 100; i++ {
		alias := stem + "." + want
		if i > 0 {
			alias = fmt.Sprintf("%s-%d.%s", stem, i, want)
		}
		err := linkOrCopy(path, alias)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", nil, types.Wrap(types.KindInternalError, err, "prepare %s input", want)
		}
		return alias, func() { _ = os.Remove(alias) }, nil
	}
	return "", nil, types.Errorf(types.KindInternalError, "no free name for %s input", want)
}

func linkOrCopy(src, dst string) error {
	err := os.Link(src, dst)
	if err == nil || errors.Is(err, fs.ErrExist) {
		return err
	}

	in, err := os.Open(src) //nolint:gosec // checked input
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // sibling of the input
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}

func checkInput(path string) error {
	if path == "" {
		return types.Errorf(types.KindInvalidInput, "empty input path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return types.Wrap(types.KindInvalidInput, err, "input file is not accessible")
	}
	if !info.Mode().IsRegular() {
		return types.Errorf(types.KindInvalidInput, "input is not a regular file")
	}
	f, err := os.Open(path)
	if err != nil {
		return types.Wrap(types.KindInvalidInput, err, "input file is not readable")
	}
	return f.Close()
}

// normalize keeps classified errors and wraps everything else as InternalError.
func normalize(err error) error {
	var typed *types.Error
	if errors.As(err, &typed) {
		return typed
	}
	return &types.Error{Kind: types.KindInternalError, Message: fmt.Sprint(err), Err: err}
}
