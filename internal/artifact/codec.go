package artifact

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/persistorai/cobuy/internal/embedding"
)

// writeModel gob-encodes w, stores it gzip-compressed and returns the
// SHA-256 of the uncompressed encoding plus the compressed size.
func writeModel(path string, w *embedding.Weights) (checksum string, size int64, err error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(w); err != nil {
		return "", 0, fmt.Errorf("encoding model: %w", err)
	}

	sum := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return "", 0, fmt.Errorf("compressing model: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return "", 0, fmt.Errorf("finalizing compression: %w", err)
	}

	if err := writeFile(path, compressed.Bytes()); err != nil {
		return "", 0, err
	}

	return hex.EncodeToString(sum[:]), int64(compressed.Len()), nil
}

func readModel(path, wantChecksum string) (*embedding.Weights, error) {
	f, err := os.Open(path) //nolint:gosec // path is built from a validated merchant id.
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer f.Close() //nolint:errcheck // read-only file.

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompressing model: %w", err)
	}
	defer gzr.Close() //nolint:errcheck // read-only stream.

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}

	sum := sha256.Sum256(raw)
	if got := hex.EncodeToString(sum[:]); got != wantChecksum {
		return nil, fmt.Errorf("model checksum mismatch: expected %s, got %s", wantChecksum, got)
	}

	var w embedding.Weights
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&w); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}

	return &w, nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}

	return writeFile(path, data)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is built from a validated merchant id.
	if err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}

	return nil
}

func writeFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, filePerm) //nolint:gosec // path is built from a validated merchant id.
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close() //nolint:errcheck // write already failed.
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close() //nolint:errcheck // sync already failed.
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}

	return f.Close()
}
