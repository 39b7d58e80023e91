package subtitle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nodo1014/indexer-quick/internal/core"
)

// finalCueDurationMs is the synthetic duration given to the last SMI cue,
// which has no following <SYNC> to derive an end time from.
const finalCueDurationMs = 5000

var (
	syncTag  = regexp.MustCompile(`(?i)<SYNC\s+Start\s*=\s*"?(\d+)"?\s*>`)
	tagStrip = regexp.MustCompile(`(?i)</?(BR|P|FONT|B|I|U)[^>]*>`)
	anyTag   = regexp.MustCompile(`<[^>]*>`)
)

// parseSMI hand-rolls SMI's <SYNC Start=N> cue boundaries: astisub does not
// dispatch this format through the same call as the rest.
func parseSMI(content string) ([]RawCue, error) {
	matches := syncTag.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return nil, core.NewError(core.KindParse, core.AbortFile, "no SYNC tags found", core.ErrUnsupportedFormat)
	}

	type sync struct {
		startMs            int64
		bodyStart, bodyEnd int
	}
	var syncs []sync
	for i, m := range matches {
		startStr := content[m[2]:m[3]]
		startMs, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			return nil, core.NewError(core.KindParse, core.AbortFile,
				fmt.Sprintf("malformed SYNC start value %q", startStr), core.ErrMalformedCue)
		}
		bodyStart := m[1]
		bodyEnd := len(content)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}
		syncs = append(syncs, sync{startMs: startMs, bodyStart: bodyStart, bodyEnd: bodyEnd})
	}

	cues := make([]RawCue, 0, len(syncs))
	for i, s := range syncs {
		var endMs int64
		if i+1 < len(syncs) {
			endMs = syncs[i+1].startMs - 1
		} else {
			endMs = s.startMs + finalCueDurationMs
		}
		text := stripSMIMarkup(content[s.bodyStart:s.bodyEnd])
		cues = append(cues, RawCue{StartMs: s.startMs, EndMs: endMs, Text: text})
	}
	return cues, nil
}

func stripSMIMarkup(s string) string {
	s = regexp.MustCompile(`(?i)<BR\s*/?>`).ReplaceAllString(s, "\n")
	s = tagStrip.ReplaceAllString(s, "")
	s = anyTag.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	return strings.TrimSpace(s)
}
