// Package archive is the on-disk configuration version store: per device,
// timestamp-named text exports, binary snapshots, and unified diffs, all
// content-addressed by SHA-256. The archive is append-only; nothing here
// rewrites or deletes a captured artifact.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	exportDir = "export"
	binaryDir = "binary"
	diffDir   = "diff"

	exportExt = ".rsc"
	binaryExt = ".backup"
)

// Capture describes the artifacts written by one capture pass.
type Capture struct {
	Stamp      int64 // milliseconds since epoch; filenames sort by it
	ExportPath string
	ExportHash string
	BinaryPath string // empty when the dialect has no binary snapshot
	BinaryHash string
	DiffPath   string // empty on the very first capture for a device
}

// Archive stores captures under root/<deviceID>/{export,binary,diff}.
// Timestamps are guarded per device so filename order always equals
// capture order, which the diff step depends on.
type Archive struct {
	root string

	mu        sync.Mutex
	lastStamp map[uint]int64
	now       func() time.Time
}

// New creates an archive rooted at dir.
func New(dir string) *Archive {
	return &Archive{root: dir, lastStamp: make(map[uint]int64), now: time.Now}
}

// Root returns the archive's base directory.
func (a *Archive) Root() string { return a.root }

// stamp hands out a strictly increasing millisecond timestamp per device,
// so two captures in the same millisecond cannot collide or reorder.
func (a *Archive) stamp(deviceID uint) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	ts := a.now().UnixMilli()
	if last := a.lastStamp[deviceID]; ts <= last {
		ts = last + 1
	}
	a.lastStamp[deviceID] = ts
	return ts
}

// Do performs one capture for a device: hash the export (and the optional
// binary), diff against the immediately preceding export, and move every
// artifact into place. All-or-nothing: artifacts are staged in a temp
// directory first, and on any failure nothing is left behind.
func (a *Archive) Do(deviceID uint, exportText []byte, binary []byte) (*Capture, error) {
	ts := a.stamp(deviceID)

	base := filepath.Join(a.root, fmt.Sprintf("%d", deviceID))
	for _, sub := range []string{exportDir, binaryDir, diffDir} {
		if err := os.MkdirAll(filepath.Join(base, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating archive dir: %w", err)
		}
	}

	stage, err := os.MkdirTemp(base, ".capture-*")
	if err != nil {
		return nil, fmt.Errorf("creating staging dir: %w", err)
	}
	defer os.RemoveAll(stage)

	snap := &Capture{
		Stamp:      ts,
		ExportHash: hashHex(exportText),
	}

	exportName := fmt.Sprintf("config-%d%s", ts, exportExt)
	if err := os.WriteFile(filepath.Join(stage, exportName), exportText, 0o644); err != nil {
		return nil, fmt.Errorf("staging export: %w", err)
	}

	var binaryName string
	if binary != nil {
		binaryName = fmt.Sprintf("backup-%d%s", ts, binaryExt)
		snap.BinaryHash = hashHex(binary)
		if err := os.WriteFile(filepath.Join(stage, binaryName), binary, 0o644); err != nil {
			return nil, fmt.Errorf("staging binary: %w", err)
		}
	}

	// Diff against the latest prior export, if any. Export filenames are
	// timestamp-named, so lexicographic order is chronological order.
	var diffName string
	prev, err := a.latestExport(deviceID)
	if err != nil {
		return nil, err
	}
	if prev != "" {
		prevText, err := os.ReadFile(prev)
		if err != nil {
			return nil, fmt.Errorf("reading previous export: %w", err)
		}
		diffText, err := unifiedDiff(filepath.Base(prev), exportName, prevText, exportText)
		if err != nil {
			return nil, fmt.Errorf("computing diff: %w", err)
		}
		diffName = fmt.Sprintf("diff-%d.txt", ts)
		if err := os.WriteFile(filepath.Join(stage, diffName), []byte(diffText), 0o644); err != nil {
			return nil, fmt.Errorf("staging diff: %w", err)
		}
	}

	// Everything staged; move into place. Renames within one filesystem
	// do not partially fail in practice, and the export is moved last so
	// a future capture never diffs against a half-published set.
	if diffName != "" {
		if err := os.Rename(filepath.Join(stage, diffName), filepath.Join(base, diffDir, diffName)); err != nil {
			return nil, fmt.Errorf("publishing diff: %w", err)
		}
		snap.DiffPath = filepath.Join(base, diffDir, diffName)
	}
	if binaryName != "" {
		if err := os.Rename(filepath.Join(stage, binaryName), filepath.Join(base, binaryDir, binaryName)); err != nil {
			return nil, fmt.Errorf("publishing binary: %w", err)
		}
		snap.BinaryPath = filepath.Join(base, binaryDir, binaryName)
	}
	if err := os.Rename(filepath.Join(stage, exportName), filepath.Join(base, exportDir, exportName)); err != nil {
		if snap.DiffPath != "" {
			os.Remove(snap.DiffPath)
		}
		if snap.BinaryPath != "" {
			os.Remove(snap.BinaryPath)
		}
		return nil, fmt.Errorf("publishing export: %w", err)
	}
	snap.ExportPath = filepath.Join(base, exportDir, exportName)

	return snap, nil
}

// latestExport returns the path of the newest export for a device, or ""
// when the device has no history yet.
func (a *Archive) latestExport(deviceID uint) (string, error) {
	dir := filepath.Join(a.root, fmt.Sprintf("%d", deviceID), exportDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("listing exports: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), exportExt) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", nil
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}

// hashHex returns the SHA-256 of data as lowercase hex.
func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// unifiedDiff renders a unified line diff between two exports.
func unifiedDiff(fromName, toName string, from, to []byte) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(from)),
		B:        difflib.SplitLines(string(to)),
		FromFile: fromName,
		ToFile:   toName,
		Context:  3,
	})
}
