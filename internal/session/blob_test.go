package session

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestBlobRoundTrip(t *testing.T) {
	blob := make([]byte, 300)
	for i := range blob {
		blob[i] = byte(i * 7)
	}

	decoded, err := DecodeBlob(EncodeBlob(blob))
	if err != nil {
		t.Fatalf("DecodeBlob: %v", err)
	}
	if !bytes.Equal(decoded, blob) {
		t.Error("round trip is not byte-identical")
	}
}

func TestDecodeBlobRejectsGarbage(t *testing.T) {
	if _, err := DecodeBlob("!!! definitely not base64 !!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestExportImportFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "telegram.session")
	dst := filepath.Join(dir, "imported.session")

	blob := []byte("SQLite format 3\x00 pretend credential payload with some length to it")
	if err := os.WriteFile(src, blob, 0o600); err != nil {
		t.Fatal(err)
	}

	encoded, err := ExportFile(src)
	if err != nil {
		t.Fatalf("ExportFile: %v", err)
	}
	if err := ImportFile(encoded, dst); err != nil {
		t.Fatalf("ImportFile: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, blob) {
		t.Error("imported file differs from exported source")
	}
}
