package container

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FooterSize is the fixed byte length of the trailing footer.
const FooterSize = 32

// magic is the 8-byte ASCII signature identifying an encoderfile.
var magic = [8]byte{'E', 'N', 'C', 'F', 'I', 'L', 'E', 0}

// FormatVersion is the only footer version this codec currently emits.
const FormatVersion uint32 = 1

// FlagMetadataLengthDelimited is bit 0 of Footer.Flags: the manifest uses
// the length-delimited wire format. Version 1 requires this bit set.
const FlagMetadataLengthDelimited uint32 = 1 << 0

// Footer is the fixed 32-byte trailer every encoderfile carries:
//
//	magic[8]           ASCII "ENCFILE\0"
//	format_version u32 le
//	metadata_offset u64 le   (absolute file offset of manifest start)
//	metadata_length u64 le   (byte length of encoded manifest)
//	flags u32 le             (bit 0: metadata-is-length-delimited)
type Footer struct {
	FormatVersion  uint32
	MetadataOffset uint64
	MetadataLength uint64
	Flags          uint32
}

// Write emits the 32-byte footer to sink exactly as laid out above.
func (f *Footer) Write(sink io.Writer) error {
	var buf [FooterSize]byte
	copy(buf[0:8], magic[:])
	binary.LittleEndian.PutUint32(buf[8:12], f.FormatVersion)
	binary.LittleEndian.PutUint64(buf[12:20], f.MetadataOffset)
	binary.LittleEndian.PutUint64(buf[20:28], f.MetadataLength)
	binary.LittleEndian.PutUint32(buf[28:32], f.Flags)
	n, err := sink.Write(buf[:])
	if err != nil {
		return fmt.Errorf("write footer: %w", err)
	}
	if n != FooterSize {
		return fmt.Errorf("write footer: short write (%d of %d bytes)", n, FooterSize)
	}
	return nil
}

// ReadFooter seeks to end-32 in seekable, parses the footer fields, and
// checks the magic. It does not call Validate — callers that need the
// version/flags invariant enforced should call Footer.Validate explicitly.
func ReadFooter(seekable io.ReadSeeker) (*Footer, error) {
	size, err := seekable.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("seek end: %w", err)
	}
	if size < FooterSize {
		return nil, &TruncatedError{Reason: fmt.Sprintf("file is %d bytes, shorter than the %d-byte footer", size, FooterSize)}
	}
	if _, err := seekable.Seek(-FooterSize, io.SeekEnd); err != nil {
		return nil, fmt.Errorf("seek to footer: %w", err)
	}

	var buf [FooterSize]byte
	if _, err := io.ReadFull(seekable, buf[:]); err != nil {
		return nil, fmt.Errorf("read footer: %w", err)
	}

	var gotMagic [8]byte
	copy(gotMagic[:], buf[0:8])
	if gotMagic != magic {
		return nil, &InvalidFormatError{Reason: "footer magic mismatch"}
	}

	f := &Footer{
		FormatVersion:  binary.LittleEndian.Uint32(buf[8:12]),
		MetadataOffset: binary.LittleEndian.Uint64(buf[12:20]),
		MetadataLength: binary.LittleEndian.Uint64(buf[20:28]),
		Flags:          binary.LittleEndian.Uint32(buf[28:32]),
	}
	return f, nil
}

// Validate enforces the per-version flag requirements. Version 1 requires
// FlagMetadataLengthDelimited to be set; all other flag bits must be zero.
func (f *Footer) Validate() error {
	switch f.FormatVersion {
	case 1:
		if f.Flags&FlagMetadataLengthDelimited == 0 {
			return &InvalidFormatError{Reason: "format version 1 requires the length-delimited-metadata flag"}
		}
		if f.Flags&^FlagMetadataLengthDelimited != 0 {
			return &InvalidFormatError{Reason: fmt.Sprintf("unknown flag bits set: %#x", f.Flags&^FlagMetadataLengthDelimited)}
		}
		return nil
	default:
		return &InvalidFormatError{Reason: fmt.Sprintf("unsupported format version %d", f.FormatVersion)}
	}
}
