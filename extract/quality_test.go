package extract

import (
	"strings"
	"testing"
)

func TestPrintableRatio(t *testing.T) {
	if r := printableRatio("plain readable text"); r != 1.0 {
		t.Errorf("clean text ratio = %v, want 1.0", r)
	}
	// Half the runes come from the Private Use Area, the signature of a
	// CIDFont without a ToUnicode map.
	garbled := strings.Repeat("a\uE123", 50)
	if r := printableRatio(garbled); r > 0.6 {
		t.Errorf("garbled ratio = %v, want <= 0.6", r)
	}
	if r := printableRatio(""); r != 1.0 {
		t.Errorf("empty ratio = %v, want 1.0", r)
	}
}

func TestWordlikeRatio(t *testing.T) {
	if r := wordlikeRatio("the court finds the motion granted"); r != 1.0 {
		t.Errorf("ratio = %v, want 1.0", r)
	}
	// Character-by-character text runs tokenize as single letters.
	if r := wordlikeRatio("t h e c o u r t"); r != 0 {
		t.Errorf("ratio = %v, want 0", r)
	}
	if r := wordlikeRatio(""); r != 0 {
		t.Errorf("empty ratio = %v, want 0", r)
	}
}

func TestQualitySuspect(t *testing.T) {
	tests := []struct {
		name string
		q    Quality
		want bool
	}{
		{"sparse text over images", Quality{CharsPerPage: 10, HasImages: true, PrintableRatio: 1.0}, true},
		{"sparse text no images", Quality{CharsPerPage: 10, HasImages: false, PrintableRatio: 1.0}, false},
		{"mostly garbage runes", Quality{CharsPerPage: 2000, PrintableRatio: 0.5}, true},
		{"healthy extraction", Quality{CharsPerPage: 2000, PrintableRatio: 0.99}, false},
	}
	for _, tt := range tests {
		if got := tt.q.Suspect(); got != tt.want {
			t.Errorf("%s: Suspect() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestQualityOf(t *testing.T) {
	q := qualityOf(strings.Repeat("word ", 100), 2, true)
	if q.PageCount != 2 || !q.HasImages {
		t.Errorf("structure fields lost: %+v", q)
	}
	if q.CharsPerPage != 250 {
		t.Errorf("chars per page = %v, want 250", q.CharsPerPage)
	}
}
