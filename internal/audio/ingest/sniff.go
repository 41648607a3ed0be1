package ingest

import (
	"bytes"

	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
)

var (
	magicRIFF = []byte("RIFF")
	magicWAVE = []byte("WAVE")
	magicOgg  = []byte("OggS")
	magicID3  = []byte("ID3")
	magicEBML = []byte{0x1A, 0x45, 0xDF, 0xA3}
	opusHead  = []byte("OpusHead")
)

// Sniff identifies the container from its leading bytes. Browser recorders
// often label WebM blobs as WAV, so callers should trust this over the
// declared type.
func Sniff(data []byte) domain.Format {
	switch {
	case len(data) >= 12 && bytes.Equal(data[:4], magicRIFF) && bytes.Equal(data[8:12], magicWAVE):
		return domain.FormatWAV
	case bytes.HasPrefix(data, magicOgg):
		return domain.FormatOGG
	case bytes.HasPrefix(data, magicEBML):
		return domain.FormatWebM
	case bytes.HasPrefix(data, magicID3):
		return domain.FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return domain.FormatMP3
	}
	return domain.FormatUnknown
}

// isOpus reports whether an Ogg stream carries Opus rather than Vorbis.
func isOpus(data []byte) bool {
	head := data
	if len(head) > 128 {
		head = head[:128]
	}
	return bytes.Contains(head, opusHead)
}

func extension(f domain.Format) string {
	switch f {
	case domain.FormatWAV, domain.FormatMP3, domain.FormatOGG, domain.FormatWebM:
		return "." + string(f)
	}
	return ".bin"
}
