// Package signature guesses a file type from its leading magic bytes.
package signature

import (
	"strconv"
	"strings"
)

// Unknown is the label for unrecognised or unreadable input.
const Unknown = "UNK"

// SniffLen is how many leading bytes Sniff inspects.
const SniffLen = 32

// wildcard matches any byte.
const wildcard = -1

type magic struct {
	label   string
	pattern []int
}

// Table order matters: longer, more specific patterns come first.
var magics = []magic{
	mustMagic("ASF", "30 26 B2 75 8E 66 CF 11 A6 D9 00 AA 00 62 CE 6C"),
	mustMagic("JPG", "FF D8 FF E0 00 10 4A 46 49 46 00 01"),
	mustMagic("JPG", "FF D8 FF E1 ?? ?? 45 78 69 66 00 00"),
	mustMagic("PNG", "89 50 4E 47 0D 0A 1A 0A"),
	mustMagic("WAV", "52 49 46 46 ?? ?? ?? ?? 57 41 56 45"),
	mustMagic("DEB", "21 3C 61 72 63 68 3E 0A"),
	mustMagic("BLEND", "42 4C 45 4E 44 45 52"),
	mustMagic("GIF", "47 49 46 38 37 61"),
	mustMagic("GIF", "47 49 46 38 39 61"),
	mustMagic("7z", "37 7A BC AF 27 1C"),
	mustMagic("PDF", "25 50 44 46 2D"),
	mustMagic("ELF", "7F 45 4C 46"),
	mustMagic("JPG", "FF D8 FF DB"),
	mustMagic("JPG", "FF D8 FF EE"),
	mustMagic("JPG", "FF D8 FF E0"),
	mustMagic("ZIP", "50 4B 03 04"),
	mustMagic("ZIP", "50 4B 05 06"),
	mustMagic("ZIP", "50 4B 07 08"),
	mustMagic("OGG", "4F 67 67 53"),
	mustMagic("FLAC", "66 4C 61 43"),
	mustMagic("MKV", "1A 45 DF A3"),
	mustMagic("WASM", "00 61 73 6D"),
	mustMagic("MPEG", "00 00 01 BA"),
	mustMagic("MPEG", "00 00 01 B3"),
	mustMagic("NES", "4E 45 53 1A"),
	mustMagic("MP3", "49 44 33"),
	mustMagic("NES", "4E 45 53"),
	mustMagic("GZ", "1F 8B"),
	mustMagic("MP3", "FF FB"),
	mustMagic("MP3", "FF F3"),
	mustMagic("MP3", "FF F2"),
	mustMagic("BMP", "42 4D"),
}

// mustMagic parses a space separated hex pattern where "??" is a wildcard.
func mustMagic(label, spec string) magic {
	fields := strings.Fields(spec)
	m := magic{label: label, pattern: make([]int, len(fields))}
	for i, f := range fields {
		if f == "??" {
			m.pattern[i] = wildcard
			continue
		}
		v, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			panic("signature: bad pattern for " + label + ": " + f)
		}
		m.pattern[i] = int(v)
	}
	return m
}

func (m magic) match(prefix []byte) bool {
	if len(prefix) < len(m.pattern) {
		return false
	}
	for i, want := range m.pattern {
		if want != wildcard && int(prefix[i]) != want {
			return false
		}
	}
	return true
}

// Classify returns the label of the first signature that prefix starts
// with, or Unknown.
func Classify(prefix []byte) string {
	for _, m := range magics {
		if m.match(prefix) {
			return m.label
		}
	}
	return Unknown
}

// ByteReader is the read path Sniff consults.
type ByteReader interface {
	ByteAt(id uint64) (byte, error)
	Size() uint64
}

// Sniff classifies the first SniffLen bytes of r. A read error yields
// Unknown rather than a partial guess.
func Sniff(r ByteReader) string {
	n := min(r.Size(), SniffLen)
	if n == 0 {
		return Unknown
	}
	prefix := make([]byte, n)
	for i := range prefix {
		b, err := r.ByteAt(uint64(i))
		if err != nil {
			return Unknown
		}
		prefix[i] = b
	}
	return Classify(prefix)
}
