// Package apperr holds the sentinel errors shared across patchsync packages.
package apperr

import "errors"

var (
	// ErrFormat marks a malformed change-report or manifest line.
	ErrFormat = errors.New("format error")
	// ErrExternalCommand marks a failed version-control command.
	ErrExternalCommand = errors.New("external command failed")
	ErrNotFound        = errors.New("not found")
	// ErrBusy is returned when a sync is requested while another one is running.
	ErrBusy = errors.New("sync already running")
)
