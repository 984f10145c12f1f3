package api

import (
	"github.com/irowiki-org/iROWikiPatcherTool/internal/history"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/manifest"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/patchsync"
)

// ManifestResponse is the current state of the manifest.
type ManifestResponse struct {
	Path    string           `json:"path" example:"patch/patchlist/patch9.txt"`
	MaxID   int              `json:"max_id" example:"42"`
	Lines   int              `json:"lines" example:"57"`
	Entries []manifest.Entry `json:"entries"`
}

// RunListResponse wraps recorded runs, newest first.
type RunListResponse struct {
	Runs []history.Run `json:"runs"`
}

// SyncResponse is the report of a run triggered over HTTP.
type SyncResponse = patchsync.Report
