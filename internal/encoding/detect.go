// Package encoding detects and normalizes the byte encoding of subtitle
// files so that everything downstream of it only ever sees UTF-8.
package encoding

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"github.com/nodo1014/indexer-quick/internal/core"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

const sniffLen = 64 * 1024

// minConfidence is the statistical detector's acceptance threshold.
const minConfidence = 0.6

// Result is the outcome of decoding one subtitle file to UTF-8.
type Result struct {
	Text  string
	Label string
}

// DetectAndDecode reads path, determines its encoding, and returns the
// fully decoded UTF-8 text along with the encoding label used.
func DetectAndDecode(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, core.NewError(core.KindIO, core.AbortFile, "open subtitle file", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return Result{}, core.NewError(core.KindIO, core.AbortFile, "read subtitle file", err)
	}

	if label, body, ok := stripBOM(raw); ok {
		text, err := decodeWithLabel(body, label)
		if err == nil {
			return Result{Text: normalize(text), Label: label}, nil
		}
	}

	sample := raw
	if len(sample) > sniffLen {
		sample = sample[:sniffLen]
	}

	label, confident := statisticalGuess(sample)
	if confident {
		if text, err := decodeWithLabel(raw, label); err == nil {
			return Result{Text: normalize(text), Label: label}, nil
		}
	}

	for _, fallback := range []string{"windows-1252", "iso-8859-1"} {
		if text, err := decodeWithLabel(raw, fallback); err == nil {
			return Result{Text: normalize(text), Label: fallback}, nil
		}
	}

	// Last resort: permissive UTF-8 with replacement characters. The worker
	// logs a warning for this label; we still return usable text.
	text := string(bytes.ToValidUTF8(raw, []byte("�")))
	return Result{Text: normalize(text), Label: "utf-8-lossy"}, nil
}

// stripBOM reports the encoding implied by a leading byte-order mark, if
// any. A UTF-8 BOM is consumed here; UTF-16/32 bodies keep theirs, since
// the matching decoder consumes it (or normalize strips the residual rune).
func stripBOM(raw []byte) (label string, body []byte, ok bool) {
	switch {
	case bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}):
		return "utf-8", raw[3:], true
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE, 0x00, 0x00}):
		return "utf-32le", raw, true
	case bytes.HasPrefix(raw, []byte{0x00, 0x00, 0xFE, 0xFF}):
		return "utf-32be", raw, true
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}):
		return "utf-16le", raw, true
	case bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		return "utf-16be", raw, true
	}
	return "", nil, false
}

func statisticalGuess(sample []byte) (label string, confident bool) {
	detector := chardet.NewTextDetector()
	results, err := detector.DetectAll(sample)
	if err != nil || len(results) == 0 {
		return "", false
	}
	top := results[0]
	confidence := float64(top.Confidence) / 100.0
	if confidence < minConfidence {
		return "", false
	}
	return top.Charset, true
}

// decodeWithLabel transcodes raw bytes to UTF-8 using the named encoding.
func decodeWithLabel(raw []byte, label string) (string, error) {
	enc, err := resolveEncoding(label)
	if err != nil {
		return "", err
	}
	if enc == nil {
		if !utf8Valid(raw) {
			return "", fmt.Errorf("%s: invalid utf-8", label)
		}
		return string(raw), nil
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode as %s: %w", label, err)
	}
	return string(decoded), nil
}

// resolveEncoding maps a chardet/BOM label to an x/text encoding. A nil,
// nil return means "already UTF-8, no transcoding needed".
func resolveEncoding(label string) (encoding.Encoding, error) {
	switch label {
	case "utf-8", "UTF-8", "ASCII", "us-ascii":
		return nil, nil
	case "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), nil
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), nil
	case "utf-32le":
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM), nil
	case "utf-32be":
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM), nil
	case "windows-1252", "CP1252":
		return charmap.Windows1252, nil
	case "iso-8859-1", "ISO-8859-1", "latin1":
		return charmap.ISO8859_1, nil
	case "EUC-KR", "euc-kr", "CP949":
		return korean.EUCKR, nil
	case "Shift_JIS", "shift-jis", "SJIS":
		return japanese.ShiftJIS, nil
	case "GB18030", "gb18030", "GBK", "gbk":
		return simplifiedchinese.GB18030, nil
	case "UTF-16LE":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case "UTF-16BE":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), nil
	}
	if enc, err := htmlindex.Get(label); err == nil {
		return enc, nil
	}
	return nil, fmt.Errorf("unrecognized encoding label %q", label)
}

func utf8Valid(b []byte) bool {
	return utf8.Valid(b)
}

// normalize collapses CRLF/CR to LF and strips a residual UTF-8 BOM.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimPrefix(s, "\uFEFF")
	return s
}
