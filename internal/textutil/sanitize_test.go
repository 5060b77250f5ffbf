package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"  plain  ":          "plain",
		"a/b\\c":             "a-b-c",
		"S01E02: \"Pilot\"?": "S01E02- Pilot",
		"":                   "",
	}
	for in, want := range cases {
		if got := SanitizeFileName(in); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStemName(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/subs/Episode 01.srt", "Episode 01"},
		{"/subs/what?.srt", "what"},
		{"/subs/.srt", "dubsync"},
		{"", "dubsync"},
		{"/subs/show.en.srt", "show.en"},
	}
	for _, tc := range cases {
		if got := StemName(tc.path, "dubsync"); got != tc.want {
			t.Errorf("StemName(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
