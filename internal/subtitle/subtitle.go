// Package subtitle decodes subtitle tracks into an ordered cue sequence
// : dispatch by extension, strip markup, and normalize whitespace and
// timing so that downstream components never see format-specific detail.
package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nodo1014/indexer-quick/internal/core"
	"github.com/nodo1014/indexer-quick/pkg/subs"
)

// RawCue is one decoded cue before it is attached to a media_id.
type RawCue struct {
	StartMs int64
	EndMs   int64
	Text    string
}

// maxCueDurationMs is the corrupt-duration clamp threshold.
const maxCueDurationMs = 60_000
const clampedDurationMs = 10_000

var astisubExts = map[string]bool{
	".srt": true, ".ass": true, ".ssa": true, ".stl": true, ".ttml": true, ".vtt": true,
}

// Parse dispatches to the right decoder by file extension and applies the
// common post-processing pass shared by every format. It re-reads path
// directly, assuming it is already valid UTF-8; use ParseText when the
// bytes have gone through the encoding detector first.
func Parse(path string) ([]RawCue, error) {
	ext := strings.ToLower(filepath.Ext(path))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewError(core.KindIO, core.AbortFile, "read subtitle file", err)
	}
	return ParseText(ext, string(data))
}

// ParseText dispatches by extension over already-decoded UTF-8 text,
// completing the encoding-detector → parser pipeline handoff.
func ParseText(ext string, text string) ([]RawCue, error) {
	ext = strings.ToLower(ext)

	var raw []RawCue
	var err error
	switch {
	case ext == ".smi":
		raw, err = parseSMI(text)
	case astisubExts[ext]:
		raw, err = parseAstisub(ext, text)
	default:
		return nil, core.NewError(core.KindParse, core.AbortFile,
			fmt.Sprintf("unsupported subtitle format %q", ext), core.ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}
	return postProcess(raw), nil
}

// parseAstisub hands decoded text to astisub by way of a temp file,
// since astisub's format parsers dispatch on OpenFile rather than on an
// in-memory string.
func parseAstisub(ext string, text string) ([]RawCue, error) {
	tmp, err := os.CreateTemp("", "cue-*"+ext)
	if err != nil {
		return nil, core.NewError(core.KindIO, core.AbortFile, "create temp subtitle file", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	if _, err := tmp.WriteString(text); err != nil {
		return nil, core.NewError(core.KindIO, core.AbortFile, "write temp subtitle file", err)
	}
	tmp.Close()

	s, err := subs.OpenFile(tmp.Name(), true)
	if err != nil {
		return nil, core.NewError(core.KindParse, core.AbortFile, "open subtitle track", err)
	}

	cues := make([]RawCue, 0, len(s.Items))
	for _, item := range s.Items {
		lines := make([]string, 0, len(item.Lines))
		for _, line := range item.Lines {
			lines = append(lines, line.String())
		}
		text := strings.Join(lines, "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		cues = append(cues, RawCue{
			StartMs: item.StartAt.Milliseconds(),
			EndMs:   item.EndAt.Milliseconds(),
			Text:    text,
		})
	}
	return cues, nil
}

var wsRun = regexp.MustCompile(`[ \t]+`)

// postProcess applies the format-agnostic cleanup rules common to every
// parser: whitespace collapse, empty-cue removal, duration clamping.
func postProcess(raw []RawCue) []RawCue {
	out := make([]RawCue, 0, len(raw))
	for _, c := range raw {
		text := collapseWhitespace(c.Text)
		if text == "" {
			continue
		}
		start, end := c.StartMs, c.EndMs
		if end <= start {
			continue
		}
		if end-start > maxCueDurationMs {
			end = start + clampedDurationMs
		}
		out = append(out, RawCue{StartMs: start, EndMs: end, Text: text})
	}
	return out
}

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(wsRun.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
