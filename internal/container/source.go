package container

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// AssetSource answers for a chunk of asset bytes, regardless of whether it
// lives on disk or in memory: its length, its content hash, and a way to
// stream it to a sink. PlannedAsset computes these eagerly so the manifest
// can be sized without re-reading the source.
type AssetSource interface {
	// Size returns the length in bytes.
	Size() (int64, error)
	// SHA256 returns the SHA-256 digest of the full content.
	SHA256() ([32]byte, error)
	// WriteTo streams the full content to sink.
	WriteTo(sink io.Writer) (int64, error)
}

// FileSource is an AssetSource backed by a file on disk.
type FileSource struct {
	Path string
}

func (s FileSource) Size() (int64, error) {
	fi, err := os.Stat(s.Path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", s.Path, err)
	}
	return fi.Size(), nil
}

func (s FileSource) SHA256() ([32]byte, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return [32]byte{}, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return [32]byte{}, fmt.Errorf("hash %s: %w", s.Path, err)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

func (s FileSource) WriteTo(sink io.Writer) (int64, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()
	n, err := io.Copy(sink, f)
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", s.Path, err)
	}
	return n, nil
}

// BufferSource is an AssetSource backed by an in-memory byte buffer.
type BufferSource struct {
	Data []byte
}

func (s BufferSource) Size() (int64, error) { return int64(len(s.Data)), nil }

func (s BufferSource) SHA256() ([32]byte, error) {
	return sha256.Sum256(s.Data), nil
}

func (s BufferSource) WriteTo(sink io.Writer) (int64, error) {
	n, err := sink.Write(s.Data)
	if err != nil {
		return int64(n), fmt.Errorf("write buffer: %w", err)
	}
	return int64(n), nil
}
