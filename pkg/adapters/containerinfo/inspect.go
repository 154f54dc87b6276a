// Package containerinfo reports what a backend wrote: container format,
// video codec and sample counts.
package containerinfo

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"
)

// ErrUnknownFormat is returned when the data is neither MP4 nor Matroska.
var ErrUnknownFormat = errors.New("containerinfo: unknown container format")

// Format is a container format.
type Format string

const (
	FormatMP4      Format = "mp4"
	FormatWebM     Format = "webm"
	FormatMatroska Format = "matroska"
	FormatUnknown  Format = "unknown"
)

// Codec represents a video codec type.
type Codec string

const (
	CodecH264    Codec = "h264"
	CodecAV1     Codec = "av1"
	CodecVP8     Codec = "vp8"
	CodecVP9     Codec = "vp9"
	CodecUnknown Codec = "unknown"
)

// Info describes a container.
// Width, Height and the sample counts are filled for MP4 only.
type Info struct {
	Format      Format
	Codec       Codec
	Width       int
	Height      int
	Samples     int
	SyncSamples int
	Fragmented  bool
}

// InspectFile inspects the container stored at path.
func InspectFile(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{Format: FormatUnknown, Codec: CodecUnknown}, fmt.Errorf("read file: %w", err)
	}
	return Inspect(data)
}

// Inspect detects the container format of data and describes its video track.
func Inspect(data []byte) (Info, error) {
	switch DetectFormat(data) {
	case FormatMP4:
		return inspectMP4(data)
	case FormatWebM:
		return Info{Format: FormatWebM, Codec: matroskaCodec(data)}, nil
	case FormatMatroska:
		return Info{Format: FormatMatroska, Codec: matroskaCodec(data)}, nil
	default:
		return Info{Format: FormatUnknown, Codec: CodecUnknown}, ErrUnknownFormat
	}
}

// DetectFormat looks at the leading bytes of data only.
func DetectFormat(data []byte) Format {
	if len(data) >= 8 {
		switch string(data[4:8]) {
		case "ftyp", "moov", "moof", "styp":
			return FormatMP4
		}
	}
	if bytes.HasPrefix(data, ebmlMagic) {
		if docType(data) == "webm" {
			return FormatWebM
		}
		return FormatMatroska
	}
	return FormatUnknown
}

func inspectMP4(data []byte) (Info, error) {
	info := Info{Format: FormatMP4, Codec: CodecUnknown}

	mp4File, err := mp4.DecodeFile(bytes.NewReader(data))
	if err != nil {
		return info, fmt.Errorf("decode mp4: %w", err)
	}

	var moov *mp4.MoovBox
	if mp4File.IsFragmented() {
		info.Fragmented = true
		if mp4File.Init != nil {
			moov = mp4File.Init.Moov
		}
	} else {
		moov = mp4File.Moov
	}
	if moov == nil {
		return info, fmt.Errorf("no moov box found")
	}

	trak := videoTrack(moov)
	if trak == nil {
		return info, fmt.Errorf("no video track found")
	}
	info.Codec, info.Width, info.Height = describeTrack(trak)

	if info.Fragmented {
		countFragmentSamples(mp4File, moov, trak.Tkhd.TrackID, &info)
		return info, nil
	}

	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsz != nil {
		info.Samples = int(stbl.Stsz.SampleNumber)
	}
	if stbl.Stss != nil {
		info.SyncSamples = len(stbl.Stss.SampleNumber)
	} else {
		// No stss box means every sample is a sync sample.
		info.SyncSamples = info.Samples
	}
	return info, nil
}

func videoTrack(moov *mp4.MoovBox) *mp4.TrakBox {
	for _, trak := range moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil {
			continue
		}
		if trak.Mdia.Hdlr.HandlerType != "vide" {
			continue
		}
		if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
			continue
		}
		return trak
	}
	return nil
}

func describeTrack(trak *mp4.TrakBox) (Codec, int, int) {
	codec := CodecUnknown
	var width, height int

	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		codec = sampleEntryCodec(child.Type())
		if codec == CodecUnknown {
			continue
		}
		if vse, ok := child.(*mp4.VisualSampleEntryBox); ok {
			width, height = int(vse.Width), int(vse.Height)
		}
		break
	}

	if width == 0 && trak.Tkhd != nil {
		// tkhd dimensions are 16.16 fixed point
		width = int(uint32(trak.Tkhd.Width) >> 16)
		height = int(uint32(trak.Tkhd.Height) >> 16)
	}
	return codec, width, height
}

func sampleEntryCodec(boxType string) Codec {
	switch boxType {
	case "avc1", "avc3":
		return CodecH264
	case "av01":
		return CodecAV1
	case "vp08":
		return CodecVP8
	case "vp09":
		return CodecVP9
	default:
		return CodecUnknown
	}
}

func countFragmentSamples(mp4File *mp4.File, moov *mp4.MoovBox, trackID uint32, info *Info) {
	var trex *mp4.TrexBox
	if moov.Mvex != nil {
		for _, t := range moov.Mvex.Trexs {
			if t.TrackID == trackID {
				trex = t
				break
			}
		}
	}

	for _, seg := range mp4File.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			samples, err := frag.GetFullSamples(trex)
			if err != nil {
				continue
			}
			for _, sample := range samples {
				info.Samples++
				if sample.Flags == mp4.SyncSampleFlags {
					info.SyncSamples++
				}
			}
		}
	}
}
