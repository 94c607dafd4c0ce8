package handlers

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sort"

	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/onecloud/onecloud/internal/core/engine"
)

// Build metadata, injected from main via SetVersionInfo.
var (
	AppName      = "onecloud"
	AppVersion   = "dev"
	AppCommit    = "unknown"
	AppBuildDate = "unknown"
)

func SetVersionInfo(version, commit, buildDate string) {
	AppVersion = version
	AppCommit = commit
	AppBuildDate = buildDate
}

// VersionResponse is the body of GET /version. Pacing lists the per-verb
// spacing the sandbox expects well-behaved clients to keep.
type VersionResponse struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Commit    string            `json:"git_commit"`
	BuildDate string            `json:"build_date"`
	Go        string            `json:"go_version"`
	Platform  string            `json:"platform"`
	Gofulmen  string            `json:"gofulmen"`
	Crucible  string            `json:"crucible"`
	Pacing    []PacingInterval  `json:"pacing"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// PacingInterval is one verb's minimum spacing in milliseconds.
type PacingInterval struct {
	Verb       string `json:"verb"`
	IntervalMS int64  `json:"interval_ms"`
}

func pacingIntervals() []PacingInterval {
	out := make([]PacingInterval, 0, len(engine.DefaultIntervals))
	for verb, interval := range engine.DefaultIntervals {
		out = append(out, PacingInterval{Verb: verb, IntervalMS: interval.Milliseconds()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Verb < out[j].Verb })
	return out
}

func VersionHandler(w http.ResponseWriter, r *http.Request) {
	deps := crucible.GetVersion()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(VersionResponse{
		Name:      AppName,
		Version:   AppVersion,
		Commit:    AppCommit,
		BuildDate: AppBuildDate,
		Go:        runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Gofulmen:  deps.Gofulmen,
		Crucible:  deps.Crucible,
		Pacing:    pacingIntervals(),
	})
}
