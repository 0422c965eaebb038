package main

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/nilotpal-labs/emberkv/pkg/kverrors"
)

const markerFileName = "engine"

// checkAndWriteMarker enforces that a data directory is only ever
// opened with one engine kind: if a prior run left a marker naming a
// different engine, refuse to start rather than silently misreading its
// segments. The marker itself is written atomically (write-to-temp plus
// rename) via natefinch/atomic, so a crash mid-write can never leave a
// half-written marker that later reads as a third, bogus engine name.
func checkAndWriteMarker(dataDir, engineKind string) error {
	path := filepath.Join(dataDir, markerFileName)

	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		if string(bytes.TrimSpace(existing)) != engineKind {
			return kverrors.NewStringError(
				"data directory was created with engine " + string(bytes.TrimSpace(existing)) + ", not " + engineKind,
			)
		}
		return nil
	case os.IsNotExist(err):
		return atomic.WriteFile(path, bytes.NewReader([]byte(engineKind)))
	default:
		return kverrors.NewIOError(err, "read engine marker").WithPath(path)
	}
}
