package version

import (
	"runtime/debug"
	"testing"
)

func TestInfo_Short(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"dev", Info{Version: "dev"}, "dev"},
		{"commit", Info{Version: "0.4.0", GitCommit: "abc1234"}, "0.4.0-abc1234"},
		{"dirty", Info{Version: "0.4.0", GitCommit: "abc1234", Dirty: true}, "0.4.0-abc1234-dirty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.Short(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestInfo_String(t *testing.T) {
	info := Info{Version: "0.4.0", BuildTime: "2026-01-15T10:30:00Z", GoVersion: "go1.26.0"}
	want := "0.4.0 built 2026-01-15T10:30:00Z go1.26.0"
	if got := info.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestInfo_Release(t *testing.T) {
	if (Info{Version: "dev"}).Release() {
		t.Error("dev should not be a release")
	}
	if (Info{Version: "0.4.0", Dirty: true}).Release() {
		t.Error("dirty build should not be a release")
	}
	if !(Info{Version: "0.4.0"}).Release() {
		t.Error("0.4.0 should be a release")
	}
}

func TestFromSettings(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.modified", Value: "true"},
		{Key: "vcs.time", Value: "2026-02-01T00:00:00Z"},
	}

	info := fromSettings(Info{Version: "dev"}, settings)
	if info.GitCommit != "0123456" {
		t.Errorf("expected short commit, got %q", info.GitCommit)
	}
	if !info.Dirty {
		t.Error("expected dirty")
	}
	if info.BuildTime != "2026-02-01T00:00:00Z" {
		t.Errorf("expected vcs time, got %q", info.BuildTime)
	}

	stamped := fromSettings(Info{Version: "0.4.0", GitCommit: "feedbee", BuildTime: "now"}, settings)
	if stamped.GitCommit != "feedbee" || stamped.BuildTime != "now" {
		t.Errorf("expected ldflags values to win, got %+v", stamped)
	}
}

func TestGet(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()
	Version = "9.9.9"

	if got := Get().Version; got != "9.9.9" {
		t.Errorf("expected 9.9.9, got %q", got)
	}
}
