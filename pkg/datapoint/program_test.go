package datapoint

import (
	"errors"
	"slices"
	"testing"
)

func TestParseProgramText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []ProgramStep
	}{
		{
			name: "positions with and without duration",
			text: "50/3;100",
			want: []ProgramStep{{Position: 50, Duration: 3}, {Position: 100}},
		},
		{
			name: "single step",
			text: "0",
			want: []ProgramStep{{Position: 0}},
		},
		{
			name: "explicit zero duration",
			text: "25/0;75/10",
			want: []ProgramStep{{Position: 25}, {Position: 75, Duration: 10}},
		},
		{
			name: "max values",
			text: "100/9999",
			want: []ProgramStep{{Position: 100, Duration: 9999}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProgramText(tt.text)
			if err != nil {
				t.Fatalf("ParseProgramText failed: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("steps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseProgramTextErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"position over 100", "101"},
		{"negative position", "-5"},
		{"non-numeric position", "abc/3"},
		{"non-numeric duration", "50/x"},
		{"duration over cap", "50/10000"},
		{"empty step", "50;;100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseProgramText(tt.text); !errors.Is(err, ErrBadProgramText) {
				t.Errorf("expected ErrBadProgramText, got %v", err)
			}
		})
	}
}

func TestProgramTextRoundTrip(t *testing.T) {
	// Semantic round trip: parse(render(parse(text))) preserves steps even
	// where zero-duration formatting differs byte-wise.
	texts := []string{"50/3;100", "50/0;100", "0;100/1;50/2", "100"}
	for _, text := range texts {
		steps, err := ParseProgramText(text)
		if err != nil {
			t.Fatalf("ParseProgramText(%q) failed: %v", text, err)
		}
		again, err := ParseProgramText(RenderProgramText(steps))
		if err != nil {
			t.Fatalf("re-parse of %q failed: %v", RenderProgramText(steps), err)
		}
		if !slices.Equal(steps, again) {
			t.Errorf("%q: round trip %v != %v", text, again, steps)
		}
	}
}

func TestRenderProgramTextClampsDuration(t *testing.T) {
	got := RenderProgramText([]ProgramStep{{Position: 10, Duration: 0xFFFF}})
	if got != "10/9999" {
		t.Errorf("render = %q, want 10/9999", got)
	}
}

func TestProgramWireRoundTrip(t *testing.T) {
	steps := []ProgramStep{{Position: 50, Duration: 3}, {Position: 100}, {Position: 0, Duration: 9999}}
	raw, err := EncodeProgram(nil, steps)
	if err != nil {
		t.Fatalf("EncodeProgram failed: %v", err)
	}

	header, got, err := DecodeProgram(raw)
	if err != nil {
		t.Fatalf("DecodeProgram failed: %v", err)
	}
	if !slices.Equal(got, steps) {
		t.Errorf("steps = %v, want %v", got, steps)
	}
	if len(header) != ProgramHeaderSize {
		t.Errorf("header size = %d, want %d", len(header), ProgramHeaderSize)
	}
}

func TestDecodeProgramErrors(t *testing.T) {
	t.Run("too short", func(t *testing.T) {
		if _, _, err := DecodeProgram([]byte{0, 0}); !errors.Is(err, ErrBadProgram) {
			t.Errorf("expected ErrBadProgram, got %v", err)
		}
	})
	t.Run("count beyond payload", func(t *testing.T) {
		if _, _, err := DecodeProgram([]byte{0, 0, 0, 5, 1, 2, 3}); !errors.Is(err, ErrBadProgram) {
			t.Errorf("expected ErrBadProgram, got %v", err)
		}
	})
}
