package vision

import (
	"fmt"
	"path/filepath"

	"gocv.io/x/gocv"
)

// SnapshotWriter persists raw frames as JPEG files named snapshot<N>.jpg.
type SnapshotWriter struct {
	Dir string
}

// Path returns the file a snapshot with the given index is written to.
func (w SnapshotWriter) Path(index int) string {
	return filepath.Join(w.Dir, fmt.Sprintf("snapshot%d.jpg", index))
}

// Save writes frame as snapshot index and returns its path. An existing
// file with the same name is overwritten.
func (w SnapshotWriter) Save(frame gocv.Mat, index int) (string, error) {
	if frame.Empty() {
		return "", fmt.Errorf("snapshot %d: %w", index, ErrEmptyFrame)
	}

	path := w.Path(index)
	if !gocv.IMWrite(path, frame) {
		return "", fmt.Errorf("failed to write snapshot %s", path)
	}
	return path, nil
}
