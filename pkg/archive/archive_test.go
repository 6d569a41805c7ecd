package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	exportV1 = "/interface bridge\nadd name=bridge1\n/ip address\nadd address=10.0.0.1/24 interface=bridge1\n"
	exportV2 = "/interface bridge\nadd name=bridge1\n/ip address\nadd address=10.0.0.2/24 interface=bridge1\n"
)

func TestFirstCaptureHasNoDiff(t *testing.T) {
	a := New(t.TempDir())

	snap, err := a.Do(1, []byte(exportV1), nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if snap.DiffPath != "" {
		t.Errorf("first capture must not produce a diff, got %q", snap.DiffPath)
	}
	if snap.BinaryPath != "" || snap.BinaryHash != "" {
		t.Errorf("no binary given, got path %q hash %q", snap.BinaryPath, snap.BinaryHash)
	}

	got, err := os.ReadFile(snap.ExportPath)
	if err != nil {
		t.Fatalf("reading published export: %v", err)
	}
	if string(got) != exportV1 {
		t.Errorf("export content mangled:\n%s", got)
	}

	sum := sha256.Sum256([]byte(exportV1))
	if snap.ExportHash != hex.EncodeToString(sum[:]) {
		t.Errorf("export hash = %s", snap.ExportHash)
	}
}

func TestSecondCaptureDiffsAgainstPredecessor(t *testing.T) {
	a := New(t.TempDir())

	if _, err := a.Do(1, []byte(exportV1), nil); err != nil {
		t.Fatalf("first Do: %v", err)
	}
	snap, err := a.Do(1, []byte(exportV2), nil)
	if err != nil {
		t.Fatalf("second Do: %v", err)
	}
	if snap.DiffPath == "" {
		t.Fatal("second capture must produce a diff")
	}

	diff, err := os.ReadFile(snap.DiffPath)
	if err != nil {
		t.Fatalf("reading diff: %v", err)
	}
	text := string(diff)
	if !strings.Contains(text, "-add address=10.0.0.1/24 interface=bridge1") {
		t.Errorf("diff missing removed line:\n%s", text)
	}
	if !strings.Contains(text, "+add address=10.0.0.2/24 interface=bridge1") {
		t.Errorf("diff missing added line:\n%s", text)
	}
	if !strings.Contains(text, "add name=bridge1") {
		t.Errorf("diff missing context line:\n%s", text)
	}
}

func TestUnchangedContentHashesEqual(t *testing.T) {
	a := New(t.TempDir())

	first, err := a.Do(1, []byte(exportV1), nil)
	if err != nil {
		t.Fatalf("first Do: %v", err)
	}
	second, err := a.Do(1, []byte(exportV1), nil)
	if err != nil {
		t.Fatalf("second Do: %v", err)
	}
	if first.ExportHash != second.ExportHash {
		t.Errorf("identical content hashed differently: %s vs %s", first.ExportHash, second.ExportHash)
	}
	if first.ExportPath == second.ExportPath {
		t.Errorf("captures must not share a filename: %s", first.ExportPath)
	}
}

func TestBinaryPublishedAlongsideExport(t *testing.T) {
	a := New(t.TempDir())
	bin := []byte{0x1f, 0x8b, 0x00, 0x01}

	snap, err := a.Do(7, []byte(exportV1), bin)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if snap.BinaryPath == "" {
		t.Fatal("binary path missing")
	}
	got, err := os.ReadFile(snap.BinaryPath)
	if err != nil {
		t.Fatalf("reading binary: %v", err)
	}
	if string(got) != string(bin) {
		t.Errorf("binary bytes mangled")
	}
	sum := sha256.Sum256(bin)
	if snap.BinaryHash != hex.EncodeToString(sum[:]) {
		t.Errorf("binary hash = %s", snap.BinaryHash)
	}
}

func TestStampsStrictlyIncreasePerDevice(t *testing.T) {
	a := New(t.TempDir())
	// Freeze the clock so every capture lands in the same millisecond.
	fixed := time.Now()
	a.now = func() time.Time { return fixed }

	var prev int64
	for i := 0; i < 3; i++ {
		snap, err := a.Do(1, []byte(exportV1), nil)
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
		if snap.Stamp <= prev {
			t.Fatalf("stamp %d not after %d", snap.Stamp, prev)
		}
		prev = snap.Stamp
	}
}

func TestNoStagingResidueAfterCapture(t *testing.T) {
	a := New(t.TempDir())

	if _, err := a.Do(1, []byte(exportV1), []byte{0x01}); err != nil {
		t.Fatalf("Do: %v", err)
	}

	base := filepath.Join(a.Root(), "1")
	entries, err := os.ReadDir(base)
	if err != nil {
		t.Fatalf("reading device dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".capture-") {
			t.Errorf("staging dir left behind: %s", e.Name())
		}
	}
}
