package ffmpegbridge

import (
	"fmt"
	"strconv"

	"github.com/user/codecbridge/pkg/codecs"
	"github.com/user/codecbridge/pkg/ports"
)

// fragmentedMP4Flags make the mp4 muxer write to a non-seekable pipe.
const fragmentedMP4Flags = "frag_keyframe+empty_moov+default_base_moof"

// BuildArgs returns the ffmpeg arguments for an invocation.
func BuildArgs(inv ports.Invocation) []string {
	switch inv.Direction {
	case ports.DirectionDecode:
		return decodeArgs(inv)
	case ports.DirectionTranscode:
		return transcodeArgs(inv)
	default:
		return encodeArgs(inv)
	}
}

func encodeArgs(inv ports.Invocation) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo", // Input format
		"-pix_fmt", inv.PixelFormat.FFmpegName(),
		"-s", fmt.Sprintf("%dx%d", inv.Width, inv.Height),
		"-r", fmt.Sprintf("%.2f", inv.FrameRate),
		"-i", "pipe:0", // Read from stdin
		"-c:v", inv.Descriptor.Compressor,
	}

	if inv.Bitrate > 0 {
		args = append(args, "-b:v", strconv.Itoa(inv.Bitrate))
	}
	if inv.KeyframeInterval > 0 {
		args = append(args, "-g", strconv.Itoa(inv.KeyframeInterval))
	}

	args = append(args, "-flush_packets", "1")
	return appendContainer(args, inv.Descriptor.Container)
}

func decodeArgs(inv ports.Invocation) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
	}

	if inv.Width > 0 && inv.Height > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", inv.Width, inv.Height))
	}

	return append(args,
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"pipe:1",
	)
}

func transcodeArgs(inv ports.Invocation) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
	}

	if inv.TrimStart > 0 {
		args = append(args, "-ss", formatSeconds(inv.TrimStart.Seconds()))
	}
	if inv.TrimDuration > 0 {
		args = append(args, "-t", formatSeconds(inv.TrimDuration.Seconds()))
	}

	args = append(args, "-c:v", inv.Descriptor.Compressor)
	if inv.Bitrate > 0 {
		args = append(args, "-b:v", strconv.Itoa(inv.Bitrate))
	}
	if inv.Descriptor.AudioCodec != "" {
		args = append(args, "-c:a", inv.Descriptor.AudioCodec)
	}

	return appendContainer(args, inv.Descriptor.Container)
}

func appendContainer(args []string, container codecs.Container) []string {
	if container == codecs.ContainerMP4 {
		args = append(args, "-movflags", fragmentedMP4Flags)
	}
	return append(args, "-f", string(container), "pipe:1")
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
