package subtitle

import "testing"

func TestParseSMI_EndTimesFollowNextStartMinusOneOrFinalTail(t *testing.T) {
	// Two SMI cues, the first ends at next_start-1, the last gets
	// the default 5s tail.
	content := `<SYNC Start=5000><P Class=ENUSCC>One
<SYNC Start=9000><P Class=ENUSCC>Two`

	cues, err := parseSMI(content)
	if err != nil {
		t.Fatalf("parseSMI: %v", err)
	}
	if len(cues) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(cues))
	}
	if cues[0].StartMs != 5000 || cues[0].EndMs != 8999 {
		t.Fatalf("cue 1 = %+v, want start=5000 end=8999", cues[0])
	}
	if cues[1].StartMs != 9000 || cues[1].EndMs != 14000 {
		t.Fatalf("cue 2 = %+v, want start=9000 end=14000", cues[1])
	}
}

func TestParseSMI_StripsMarkup(t *testing.T) {
	content := `<SYNC Start=1000><P Class=ENUSCC><FONT Color="#FFFFFF">Hello<BR>world</FONT>`
	cues, err := parseSMI(content)
	if err != nil {
		t.Fatalf("parseSMI: %v", err)
	}
	if len(cues) != 1 {
		t.Fatalf("expected 1 cue, got %d", len(cues))
	}
	if cues[0].Text != "Hello\nworld" {
		t.Fatalf("got text %q", cues[0].Text)
	}
}

func TestParseSMI_NoSyncTagsIsUnsupported(t *testing.T) {
	if _, err := parseSMI("plain text with no sync tags"); err == nil {
		t.Fatal("expected an error for a body with no SYNC tags")
	}
}

func TestPostProcess_DropsEmptyAndNonPositiveDurationCues(t *testing.T) {
	raw := []RawCue{
		{StartMs: 1000, EndMs: 2000, Text: "  keep   me  "},
		{StartMs: 1000, EndMs: 2000, Text: "   "},
		{StartMs: 2000, EndMs: 2000, Text: "zero duration"},
		{StartMs: 3000, EndMs: 1000, Text: "negative duration"},
	}
	out := postProcess(raw)
	if len(out) != 1 {
		t.Fatalf("expected 1 surviving cue, got %d: %+v", len(out), out)
	}
	if out[0].Text != "keep me" {
		t.Fatalf("expected collapsed whitespace, got %q", out[0].Text)
	}
}

func TestPostProcess_ClampsCorruptDuration(t *testing.T) {
	raw := []RawCue{{StartMs: 0, EndMs: 120_000, Text: "too long"}}
	out := postProcess(raw)
	if len(out) != 1 {
		t.Fatalf("expected 1 cue, got %d", len(out))
	}
	if out[0].EndMs != clampedDurationMs {
		t.Fatalf("expected clamp to %d, got %d", clampedDurationMs, out[0].EndMs)
	}
}

func TestParseText_UnsupportedExtension(t *testing.T) {
	if _, err := ParseText(".xyz", "anything"); err == nil {
		t.Fatal("expected an error for an unsupported extension")
	}
}
