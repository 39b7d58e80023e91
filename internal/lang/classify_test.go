package lang

import "testing"

func TestClassify_EnglishAccepted(t *testing.T) {
	result := Classify("Hello world, this is a perfectly ordinary English sentence.", DefaultMinEnglishRatio)
	if !result.Accepted {
		t.Fatalf("expected english text to be accepted, ratio=%v", result.Ratio)
	}
	if result.Lang != "en" {
		t.Fatalf("expected lang tag en, got %q", result.Lang)
	}
}

func TestClassify_KoreanRejected(t *testing.T) {
	// A predominantly-Korean track must fail admission even though
	// the ratio test, not the detector, is what governs it.
	result := Classify("안녕하세요 반갑습니다 오늘 날씨가 좋네요 정말 좋습니다", DefaultMinEnglishRatio)
	if result.Accepted {
		t.Fatalf("expected korean-majority text to be rejected, ratio=%v", result.Ratio)
	}
}

func TestClassify_DetectorOnlyChangesLabelNeverAdmission(t *testing.T) {
	// Mixed text that passes the ASCII ratio but might be tagged as a
	// non-English language by the detector must still be accepted — the
	// detector only ever relabels, it never vetoes admission.
	result := Classify("Hola amigo, muy bien, gracias por todo, nos vemos manana en la casa de mi madre.", DefaultMinEnglishRatio)
	if !result.Accepted {
		t.Fatalf("ratio-qualifying text must be accepted regardless of detector verdict")
	}
}

func TestAsciiLetterRatio_EmptyTextIsZero(t *testing.T) {
	if r := asciiLetterRatio(""); r != 0 {
		t.Fatalf("expected 0 ratio for empty text, got %v", r)
	}
}
