package session

import (
	"encoding/base64"
	"fmt"
	"os"
)

// EncodeBlob converts a raw credential blob to its transport string. The
// encoding is plain base64; DecodeBlob(EncodeBlob(b)) is byte-identical.
func EncodeBlob(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBlob converts a transport string back to the raw credential blob.
func DecodeBlob(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 credential string: %w", err)
	}
	return data, nil
}

// ExportFile reads a persisted credential file and returns its transport
// string representation.
func ExportFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read credential file %s: %w", path, err)
	}
	return EncodeBlob(data), nil
}

// ImportFile decodes a transport string and writes the blob to a credential
// file, byte for byte.
func ImportFile(encoded, path string) error {
	data, err := DecodeBlob(encoded)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write credential file %s: %w", path, err)
	}
	return nil
}
