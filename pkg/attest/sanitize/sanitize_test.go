package sanitize

import "testing"

func TestText(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"plain", "1 Main St", "1 Main St"},
		{"script stripped", `1 Main St<script>alert(1)</script>`, "1 Main St"},
		{"tags stripped", "<b>Hanoi</b>", "Hanoi"},
		{"whitespace trimmed", "  VN  ", "VN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Text(tc.in); got != tc.want {
				t.Errorf("Text(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
