package testsupport_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"curator/internal/testsupport"
)

func TestWriteFileProducesExactSize(t *testing.T) {
	dir := t.TempDir()
	for _, size := range []int64{1, 10, 24, 4096, 70000} {
		path := filepath.Join(dir, "artifact.mp4")
		testsupport.WriteFile(t, path, size)
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat failed: %v", err)
		}
		if info.Size() != size {
			t.Fatalf("size %d: wrote %d bytes", size, info.Size())
		}
	}
}

func TestWriteFileStartsWithContainerMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.mp4")
	testsupport.WriteFile(t, path, 4096)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(data[4:8], []byte("ftyp")) {
		t.Fatalf("expected an ftyp box, got %q", data[:8])
	}
}

func TestWriteFileContentIsDeterministicPerSize(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.mp4")
	second := filepath.Join(dir, "b.mp4")
	testsupport.WriteFile(t, first, 4096)
	testsupport.WriteFile(t, second, 4096)

	a, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	b, err := os.ReadFile(second)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("equal sizes must produce identical bytes")
	}

	other := filepath.Join(dir, "c.mp4")
	testsupport.WriteFile(t, other, 4097)
	c, err := os.ReadFile(other)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if bytes.Equal(a, c[:len(a)]) {
		t.Fatal("different sizes must produce different payloads")
	}
}
