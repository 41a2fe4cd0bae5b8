package httptransport

import "testing"

func TestNormalizeImageURL(t *testing.T) {
	tests := []struct {
		raw, base, want string
	}{
		{"", "https://app.getswipe.in", ""},
		{"   ", "https://app.getswipe.in", ""},
		{"https://cdn.example/a.png", "https://app.getswipe.in", "https://cdn.example/a.png"},
		{"HTTP://cdn.example/a.png", "https://app.getswipe.in", "HTTP://cdn.example/a.png"},
		{"/images/a.png", "https://app.getswipe.in", "https://app.getswipe.in/images/a.png"},
		{"/images/a.png", "https://app.getswipe.in/", "https://app.getswipe.in/images/a.png"},
		{"images/a.png", "https://app.getswipe.in", "https://app.getswipe.in/images/a.png"},
		{" images/a.png ", "", DefaultImageBaseURL + "/images/a.png"},
	}

	for _, tt := range tests {
		if got := NormalizeImageURL(tt.raw, tt.base); got != tt.want {
			t.Errorf("NormalizeImageURL(%q, %q) = %q, want %q", tt.raw, tt.base, got, tt.want)
		}
	}
}
