package mldetect

import "testing"

func TestScaler_Transform(t *testing.T) {
	s := Scaler{
		Mean:  [9]float64{1, 2, 3, 4, 5, 6, 7, 8, 9},
		Scale: [9]float64{1, 1, 1, 1, 1, 1, 1, 1, 1},
	}
	x := [9]float64{2, 3, 4, 5, 6, 7, 8, 9, 10}
	got := s.Transform(x)
	for i, v := range got {
		if v != 1.0 {
			t.Errorf("index %d: got %v, want 1.0", i, v)
		}
	}
}

func TestScaler_ZeroScaleTreatedAsOne(t *testing.T) {
	s := Scaler{Mean: [9]float64{}, Scale: [9]float64{}}
	x := [9]float64{5, 0, 0, 0, 0, 0, 0, 0, 0}
	got := s.Transform(x)
	if got[0] != 5.0 {
		t.Errorf("expected zero-scale column to divide by 1, got %v", got[0])
	}
}
