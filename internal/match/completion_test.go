package match

import "testing"

func TestIsComplete(t *testing.T) {
	cases := []struct {
		name  string
		final Scores
		maps  Scores
		want  bool
	}{
		{"regulation win", Scores{}, Scores{13, 11}, true},
		{"regulation win team2", Scores{}, Scores{4, 13}, true},
		{"final score recorded", Scores{1, 0}, Scores{16, 14}, true},
		{"final score recorded mid map", Scores{0, 1}, Scores{3, 2}, true},
		{"in progress", Scores{}, Scores{12, 11}, false},
		{"terminal but overtime", Scores{}, Scores{13, 12}, false},
		{"mr15 overtime", Scores{}, Scores{16, 15}, false},
		{"not terminal", Scores{}, Scores{14, 12}, false},
		{"second overtime", Scores{}, Scores{19, 17}, true},
		{"fourth overtime", Scores{}, Scores{25, 23}, true},
		{"fresh match", Scores{}, Scores{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsComplete(tc.final, tc.maps); got != tc.want {
				t.Fatalf("IsComplete(%v, %v) = %v, want %v", tc.final, tc.maps, got, tc.want)
			}
		})
	}
}
