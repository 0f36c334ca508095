package container

import (
	"crypto/sha256"
	"fmt"
	"io"
)

// Reader opens a sealed encoderfile: it locates the footer from end of
// file, validates it, decodes the manifest, and hands out bounded readers
// per asset slot.
type Reader struct {
	ra       io.ReaderAt
	fileLen  int64
	footer   *Footer
	manifest *Manifest
}

// Open parses the footer and manifest out of ra, which must expose fileLen
// bytes total.
func Open(ra io.ReaderAt, fileLen int64) (*Reader, error) {
	footer, err := ReadFooter(io.NewSectionReader(ra, 0, fileLen))
	if err != nil {
		return nil, err
	}
	if err := footer.Validate(); err != nil {
		return nil, err
	}

	end := footer.MetadataOffset + footer.MetadataLength
	if end > uint64(fileLen)-FooterSize || footer.MetadataOffset > uint64(fileLen) {
		return nil, &TruncatedError{Reason: "manifest range extends past end of file"}
	}

	buf := make([]byte, footer.MetadataLength)
	if _, err := ra.ReadAt(buf, int64(footer.MetadataOffset)); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	manifest, err := Decode(buf)
	if err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	return &Reader{ra: ra, fileLen: fileLen, footer: footer, manifest: manifest}, nil
}

// Manifest returns the decoded manifest.
func (r *Reader) Manifest() *Manifest { return r.manifest }

// OpenRequired resolves the slot for kind and returns a bounded reader over
// exactly artifact.Length bytes, positioned at metadata_offset+artifact.Offset.
// It fails with MissingRequiredAssetAtReadError if the slot is absent.
func (r *Reader) OpenRequired(kind AssetKind) (*io.SectionReader, error) {
	a, ok := r.manifest.GetSlot(kind)
	if !ok {
		return nil, &MissingRequiredAssetAtReadError{Kind: kind}
	}
	start := int64(r.footer.MetadataOffset) + int64(a.Offset)
	end := start + int64(a.Length)
	if end > r.fileLen-FooterSize {
		return nil, &TruncatedError{Reason: fmt.Sprintf("asset %s range extends past end of file", kind)}
	}
	return io.NewSectionReader(r.ra, start, int64(a.Length)), nil
}

// ReadAllRequired reads the full content of the slot for kind into memory.
func (r *Reader) ReadAllRequired(kind AssetKind) ([]byte, error) {
	sr, err := r.OpenRequired(kind)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, sr.Size())
	if _, err := io.ReadFull(sr, buf); err != nil {
		return nil, fmt.Errorf("read asset %s: %w", kind, err)
	}
	return buf, nil
}

// VerifyRequired reads the full content of the slot for kind and checks its
// SHA-256 digest against the manifest's recorded hash. This must run at
// least once per required asset per process lifetime; bootstrap calls it
// once at startup for every required asset it loads.
func (r *Reader) VerifyRequired(kind AssetKind) error {
	a, ok := r.manifest.GetSlot(kind)
	if !ok {
		return &MissingRequiredAssetAtReadError{Kind: kind}
	}
	data, err := r.ReadAllRequired(kind)
	if err != nil {
		return err
	}
	got := sha256.Sum256(data)
	if got != a.SHA256 {
		return fmt.Errorf("asset %s failed SHA-256 verification", kind)
	}
	return nil
}
