// Package archive serializes generated files into a single in-memory ZIP.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// Entry is one file destined for the archive.
type Entry struct {
	Path string
	Data []byte
}

// Packager renders entries into a compressed ZIP byte stream.
type Packager struct{}

// NewPackager builds a packager.
func NewPackager() *Packager {
	return &Packager{}
}

// Build writes every entry at its path and returns the archive bytes.
// Entry order is preserved. Failures are I/O-level only; entry content is
// never inspected.
func (p *Packager) Build(entries []Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for _, entry := range entries {
		if entry.Path == "" {
			return nil, fmt.Errorf("archive entry with empty path")
		}
		f, err := w.Create(entry.Path)
		if err != nil {
			return nil, fmt.Errorf("create archive entry %s: %w", entry.Path, err)
		}
		if _, err := f.Write(entry.Data); err != nil {
			return nil, fmt.Errorf("write archive entry %s: %w", entry.Path, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
