package containerinfo

import "bytes"

var ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

// DocType element ID inside the EBML header.
var docTypeID = []byte{0x42, 0x82}

// headerScanLimit bounds the search for the DocType element.
const headerScanLimit = 64

// docType returns the DocType string of the EBML header, or "".
func docType(data []byte) string {
	head := data
	if len(head) > headerScanLimit {
		head = head[:headerScanLimit]
	}
	i := bytes.Index(head, docTypeID)
	if i < 0 {
		return ""
	}

	size, n := readVint(data[i+len(docTypeID):])
	if n == 0 {
		return ""
	}
	start := i + len(docTypeID) + n
	end := start + int(size)
	if end > len(data) || size > 32 {
		return ""
	}
	return string(bytes.TrimRight(data[start:end], "\x00"))
}

// readVint decodes an EBML variable size integer. n is 0 when invalid.
func readVint(b []byte) (value uint64, n int) {
	if len(b) == 0 || b[0] == 0 {
		return 0, 0
	}
	length := 1
	for mask := byte(0x80); b[0]&mask == 0; mask >>= 1 {
		length++
	}
	if length > 8 || len(b) < length {
		return 0, 0
	}

	value = uint64(b[0] & (0xFF >> length))
	for i := 1; i < length; i++ {
		value = value<<8 | uint64(b[i])
	}
	return value, length
}

// matroskaCodec looks for the CodecID of the first video track.
func matroskaCodec(data []byte) Codec {
	ids := []struct {
		id    string
		codec Codec
	}{
		{"V_VP8", CodecVP8},
		{"V_VP9", CodecVP9},
		{"V_AV1", CodecAV1},
		{"V_MPEG4/ISO/AVC", CodecH264},
	}

	first, codec := -1, CodecUnknown
	for _, c := range ids {
		if i := bytes.Index(data, []byte(c.id)); i >= 0 && (first < 0 || i < first) {
			first, codec = i, c.codec
		}
	}
	return codec
}
