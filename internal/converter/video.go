package converter

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/BatmanBruc/convert-bot/internal/formats"
	"github.com/BatmanBruc/convert-bot/types"
)

type videoProfile struct {
	muxer string
	args  []string
}

var h264AAC = []string{
	"-c:v", "libx264", "-preset", "veryfast", "-crf", "23", "-pix_fmt", "yuv420p",
	"-c:a", "aac", "-b:a", "128k",
}

// videoProfiles fixes the encoder per container. webp cannot carry H.264, so it gets
// animated libwebp without audio.
var videoProfiles = map[types.Format]videoProfile{
	types.FormatMP4:  {muxer: "mp4", args: append(append([]string{}, h264AAC...), "-movflags", "+faststart")},
	types.FormatMOV:  {muxer: "mov", args: append(append([]string{}, h264AAC...), "-movflags", "+faststart")},
	types.FormatMKV:  {muxer: "matroska", args: h264AAC},
	types.FormatAVI:  {muxer: "avi", args: h264AAC},
	types.FormatWEBP: {muxer: "webp", args: []string{"-c:v", "libwebp", "-lossless", "0", "-q:v", "75", "-loop", "0", "-an"}},
}

// ConvertVideo re-encodes the input with ffmpeg. The run is bounded by VideoTimeout.
func (c *DefaultConverter) ConvertVideo(ctx context.Context, inputPath string, format types.Format) (string, error) {
	profile, ok := videoProfiles[format]
	if !ok || !formats.Default().IsAllowed(types.CategoryVideo, format) {
		return "", types.Errorf(types.KindUnsupportedFormat, "unsupported video format %q", format)
	}

	ffmpeg, ok := c.lookPath(c.cfg.FFmpegPath)
	if !ok {
		return "", types.Errorf(types.KindDependencyUnavailable, "ffmpeg is not installed")
	}

	src, err := openInput(inputPath)
	if err != nil {
		return "", err
	}
	_ = src.Close()

	out, err := newOutput(inputPath, format)
	if err != nil {
		return "", err
	}
	defer out.abort()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.VideoTimeout)
	defer cancel()

	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin", "-y", "-i", inputPath}
	args = append(args, profile.args...)
	args = append(args, "-f", profile.muxer, out.tmp)

	cmd := exec.CommandContext(ctx, ffmpeg, args...)
	// Children that inherit the output pipe must not hold the job past the kill.
	cmd.WaitDelay = 5 * time.Second
	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", types.Errorf(types.KindCodecError, "video encoding exceeded %s", c.cfg.VideoTimeout)
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", types.Wrap(types.KindDependencyUnavailable, err, "ffmpeg")
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", types.Errorf(types.KindCodecError, "ffmpeg failed: %s", tail(output, 400))
		}
		return "", types.Wrap(types.KindDependencyUnavailable, err, "start ffmpeg")
	}

	path, err := out.commit()
	if err != nil {
		return "", err
	}
	c.log.Debug("video converted", "to", format, "path", path)
	return path, nil
}
