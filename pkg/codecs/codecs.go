// Package codecs maps WebCodecs codec identifiers to ffmpeg invocation parameters.
package codecs

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnsupportedCodec is returned for codec identifiers outside the supported set.
var ErrUnsupportedCodec = errors.New("codecs: unsupported codec")

// Container is the output container format.
type Container string

const (
	// ContainerMP4 is fragmented MP4, used for AVC.
	ContainerMP4 Container = "mp4"
	// ContainerWebM is used for VP8, VP9 and AV1.
	ContainerWebM Container = "webm"
)

// Descriptor holds the backend parameters for one codec identifier.
type Descriptor struct {
	ID          string
	Compressor  string
	Container   Container
	PixelFormat string
	AudioCodec  string
}

// MIMEType returns the content type of the container.
func (d Descriptor) MIMEType() string {
	return "video/" + string(d.Container)
}

// Extension returns the file extension of the container, including the dot.
func (d Descriptor) Extension() string {
	return "." + string(d.Container)
}

var compressors = map[string]string{
	"vp8":  "libvpx",
	"vp9":  "libvpx-vp9",
	"vp09": "libvpx-vp9",
	"avc1": "libx264",
	"h264": "libx264",
	"av01": "libaom-av1",
}

// Lookup resolves a codec identifier.
func Lookup(id string) (Descriptor, error) {
	compressor, ok := compressors[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnsupportedCodec, id)
	}

	container := ContainerWebM
	if id == "h264" || id == "avc1" {
		container = ContainerMP4
	}

	return Descriptor{
		ID:          id,
		Compressor:  compressor,
		Container:   container,
		PixelFormat: "yuv420p",
		AudioCodec:  audioCodecFor(container),
	}, nil
}

// audioCodecFor returns the audio codec used when a pipeline muxes audio.
func audioCodecFor(c Container) string {
	if c == ContainerMP4 {
		return "aac"
	}
	return "libopus"
}

// IsSupported reports whether id is a known codec identifier.
func IsSupported(id string) bool {
	_, ok := compressors[id]
	return ok
}

// Supported returns the supported codec identifiers in sorted order.
func Supported() []string {
	ids := make([]string, 0, len(compressors))
	for id := range compressors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
