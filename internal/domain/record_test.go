package domain

import "testing"

func TestDownloadProgressOf(t *testing.T) {
	cases := []struct {
		name            string
		downloaded, total int64
		want            float64
	}{
		{"half", 500, 1000, 50},
		{"zero total", 500, 0, 0},
		{"rounds to 2 decimals", 1, 3, 33.33},
		{"exceeds 100 clamped", 1500, 1000, 100},
		{"negative clamped to zero", -5, 1000, 0},
		{"exact complete", 1000, 1000, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DownloadProgressOf(tc.downloaded, tc.total)
			if got != tc.want {
				t.Errorf("DownloadProgressOf(%d, %d) = %v, want %v", tc.downloaded, tc.total, got, tc.want)
			}
		})
	}
}
