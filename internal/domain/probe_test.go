package domain

import "testing"

func TestProbeValid(t *testing.T) {
	cases := []struct {
		name  string
		probe Probe
		want  bool
	}{
		{"valid", Probe{DurationSeconds: 120, Width: 1920, Height: 1080}, true},
		{"zero duration", Probe{DurationSeconds: 0, Width: 1920, Height: 1080}, false},
		{"negative duration", Probe{DurationSeconds: -1, Width: 1920, Height: 1080}, false},
		{"zero width", Probe{DurationSeconds: 120, Width: 0, Height: 1080}, false},
		{"zero height", Probe{DurationSeconds: 120, Width: 1920, Height: 0}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.probe.Valid(); got != tc.want {
				t.Errorf("Valid() = %v, want %v", got, tc.want)
			}
		})
	}
}
