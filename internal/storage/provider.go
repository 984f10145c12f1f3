// Package storage gives workspace-rooted access to the manifest and the change report.
package storage

// Provider is the interface for workspace file operations.
type Provider interface {
	// Read returns the raw bytes of the file at path (relative to the workspace root).
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path (relative to the workspace root).
	Write(path string, content []byte) error
	// Exists reports whether a regular file exists at path.
	Exists(path string) bool
	// Abs resolves path against the workspace root.
	Abs(path string) (string, error)
}
