package buildinfo

import (
	"runtime"
	"runtime/debug"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Version == "" || info.Commit == "" || info.BuildTime == "" {
		t.Errorf("Get() = %+v, want non-empty fields", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
}

func TestString(t *testing.T) {
	i := Get()
	want := i.Version + " (" + i.Commit + ") built at " + i.BuildTime
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestFillFromVCS(t *testing.T) {
	tests := []struct {
		name       string
		start      Info
		settings   []debug.BuildSetting
		wantCommit string
		wantTime   string
	}{
		{
			name:  "fills unknowns",
			start: Info{Commit: "unknown", BuildTime: "unknown"},
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef"},
				{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			},
			wantCommit: "0123456789ab",
			wantTime:   "2026-01-02T03:04:05Z",
		},
		{
			name:       "ldflags win",
			start:      Info{Commit: "abc", BuildTime: "today"},
			settings:   []debug.BuildSetting{{Key: "vcs.revision", Value: "fff"}, {Key: "vcs.time", Value: "t"}},
			wantCommit: "abc",
			wantTime:   "today",
		},
		{
			name:       "no vcs",
			start:      Info{Commit: "unknown", BuildTime: "unknown"},
			wantCommit: "unknown",
			wantTime:   "unknown",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := tt.start
			fillFromVCS(&info, tt.settings)
			if info.Commit != tt.wantCommit || info.BuildTime != tt.wantTime {
				t.Errorf("got %q/%q, want %q/%q", info.Commit, info.BuildTime, tt.wantCommit, tt.wantTime)
			}
		})
	}
}
