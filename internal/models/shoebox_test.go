package models

import (
	"testing"
)

func TestBBoxVolume(t *testing.T) {
	tests := []struct {
		name string
		box  BBox
		want int
	}{
		{"unit", BBox{0, 1, 0, 1, 0, 1}, 1},
		{"block", BBox{2, 5, 0, 4, 10, 12}, 24},
		{"empty x", BBox{3, 3, 0, 4, 0, 2}, 0},
		{"inverted z", BBox{0, 2, 0, 2, 5, 4}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.box.Volume(); got != tt.want {
				t.Errorf("Volume() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestShoeboxValidate(t *testing.T) {
	sb := NewShoebox(0, BBox{0, 2, 0, 2, 0, 1})
	if err := sb.Validate(); err != nil {
		t.Fatalf("Validate() on fresh shoebox: %v", err)
	}

	sb.Data = sb.Data[:3]
	if err := sb.Validate(); err == nil {
		t.Error("Expected error for truncated data")
	}

	empty := NewShoebox(0, BBox{0, 0, 0, 2, 0, 1})
	if err := empty.Validate(); err == nil {
		t.Error("Expected error for empty bounding box")
	}
}

func TestShoeboxFrameCounts(t *testing.T) {
	sb := threeFrameShoebox()
	// Mark one pixel of frame 1 as strong as well, so it no longer matches
	// the valid foreground code exactly
	sb.Mask[sb.Index(1, 0, 0)] |= MaskStrong
	sb.Mask[sb.Index(2, 1, 1)] = MaskValid | MaskBackground

	if got := sb.CountFrame(0, MaskValidForeground); got != 4 {
		t.Errorf("CountFrame(0) = %d, want 4", got)
	}
	if got := sb.CountFrame(1, MaskValidForeground); got != 3 {
		t.Errorf("CountFrame(1) = %d, want 3", got)
	}
	if got := sb.SumFrame(2, MaskValidForeground); got != 9 {
		t.Errorf("SumFrame(2) = %f, want 9", got)
	}
	if got := sb.SumFrame(2, MaskValid|MaskBackground); got != 3 {
		t.Errorf("SumFrame(2, background) = %f, want 3", got)
	}
}

func TestShoeboxFrameOutOfRange(t *testing.T) {
	sb := threeFrameShoebox()
	if sb.Frame(-1) != nil || sb.Frame(3) != nil {
		t.Error("Expected nil for frames outside the shoebox")
	}
}
