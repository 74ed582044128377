package version

import "testing"

func TestInfoString(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Version: "dev"}, "dev"},
		{Info{Version: "1.4.0", Commit: "abc1234"}, "1.4.0-abc1234"},
		{Info{Version: "1.4.0", Commit: "abc1234", Dirty: true}, "1.4.0-abc1234-dirty"},
	}
	for _, tc := range tests {
		if got := tc.info.String(); got != tc.want {
			t.Errorf("%+v.String() = %q, want %q", tc.info, got, tc.want)
		}
	}
}

func TestGetUsesLdflags(t *testing.T) {
	orig, origCommit := Version, Commit
	defer func() { Version, Commit = orig, origCommit }()
	Version, Commit = "2.0.0", "0123456789abcdef"

	info := Get()
	if info.Version != "2.0.0" {
		t.Errorf("Version = %q", info.Version)
	}
	if info.Commit != "0123456" {
		t.Errorf("Commit = %q, want it shortened", info.Commit)
	}
}
