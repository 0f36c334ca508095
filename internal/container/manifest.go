package container

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Artifact is a single manifest slot: a triple (offset, length, sha256).
// Offset is relative to the first byte of the manifest, not the file.
type Artifact struct {
	Offset uint64
	Length uint64
	SHA256 [32]byte
}

// Manifest is the length-delimited record of asset slots embedded in an
// encoderfile, between the base executable and the asset payloads.
type Manifest struct {
	ModelName string
	Version   string
	ModelType ModelKind
	Backend   Backend

	slots [numAssetKinds]*Artifact
}

// fieldFor maps an AssetKind to its manifest field number. Field numbers
// 5..8 mirror the AssetKind declaration order, so iterating fields in
// ascending number order already yields canonical order.
func fieldFor(k AssetKind) protowire.Number {
	return protowire.Number(5 + int(k))
}

func kindForField(n protowire.Number) (AssetKind, bool) {
	k := int(n) - 5
	if k < 0 || k >= numAssetKinds {
		return 0, false
	}
	return AssetKind(k), true
}

// SetArtifact installs (or replaces) the slot for kind.
func (m *Manifest) SetArtifact(kind AssetKind, a Artifact) {
	cp := a
	m.slots[kind] = &cp
}

// SetOffset updates the offset of an already-set slot. It fails if the slot
// has not been populated via SetArtifact.
func (m *Manifest) SetOffset(kind AssetKind, offset uint64) error {
	if m.slots[kind] == nil {
		return fmt.Errorf("set offset: slot %s is unset", kind)
	}
	m.slots[kind].Offset = offset
	return nil
}

// GetSlot returns the artifact for kind, if present.
func (m *Manifest) GetSlot(kind AssetKind) (Artifact, bool) {
	a := m.slots[kind]
	if a == nil {
		return Artifact{}, false
	}
	return *a, true
}

// ArtifactsIter returns every present slot in AssetKind canonical order,
// regardless of the order SetArtifact was called in.
func (m *Manifest) ArtifactsIter() []struct {
	Kind     AssetKind
	Artifact Artifact
} {
	var out []struct {
		Kind     AssetKind
		Artifact Artifact
	}
	for _, k := range CanonicalOrder() {
		if a := m.slots[k]; a != nil {
			out = append(out, struct {
				Kind     AssetKind
				Artifact Artifact
			}{Kind: k, Artifact: *a})
		}
	}
	return out
}

// Encode serializes the manifest to its length-delimited wire form. Field
// order within the byte stream is canonical-ascending but the format does
// not require it — Decode tolerates any field order, since the wire format
// permits field reordering without changing semantics.
func (m *Manifest) Encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, m.ModelName)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, m.Version)
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.ModelType))
	b = protowire.AppendTag(b, 4, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Backend))

	for _, k := range CanonicalOrder() {
		a := m.slots[k]
		if a == nil {
			continue
		}
		b = protowire.AppendTag(b, fieldFor(k), protowire.BytesType)
		b = protowire.AppendBytes(b, encodeArtifact(a))
	}
	return b
}

func encodeArtifact(a *Artifact) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, a.Offset)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, a.Length)
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, a.SHA256[:])
	return b
}

func decodeArtifact(buf []byte) (*Artifact, error) {
	a := &Artifact{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("decode artifact: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("decode artifact offset: %w", protowire.ParseError(n))
			}
			a.Offset = v
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("decode artifact length: %w", protowire.ParseError(n))
			}
			a.Length = v
			buf = buf[n:]
		case 3:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("decode artifact sha256: %w", protowire.ParseError(n))
			}
			if len(v) != 32 {
				return nil, fmt.Errorf("decode artifact sha256: want 32 bytes, got %d", len(v))
			}
			copy(a.SHA256[:], v)
			buf = buf[n:]
		default:
			// Unknown field from a future format version — skip it rather
			// than fail, so older readers stay forward-compatible.
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return nil, fmt.Errorf("decode artifact: skip unknown field %d: %w", num, protowire.ParseError(n))
			}
			buf = buf[n:]
		}
	}
	return a, nil
}

// Decode parses a manifest previously produced by Encode.
func Decode(buf []byte) (*Manifest, error) {
	m := &Manifest{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("decode manifest: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeString(buf)
			if n < 0 {
				return nil, fmt.Errorf("decode model name: %w", protowire.ParseError(n))
			}
			m.ModelName = v
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeString(buf)
			if n < 0 {
				return nil, fmt.Errorf("decode version: %w", protowire.ParseError(n))
			}
			m.Version = v
			buf = buf[n:]
		case 3:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("decode model type: %w", protowire.ParseError(n))
			}
			m.ModelType = ModelKind(v)
			buf = buf[n:]
		case 4:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("decode backend: %w", protowire.ParseError(n))
			}
			m.Backend = Backend(v)
			buf = buf[n:]
		default:
			if kind, ok := kindForField(num); ok && typ == protowire.BytesType {
				v, n := protowire.ConsumeBytes(buf)
				if n < 0 {
					return nil, fmt.Errorf("decode slot %s: %w", kind, protowire.ParseError(n))
				}
				a, err := decodeArtifact(v)
				if err != nil {
					return nil, fmt.Errorf("decode slot %s: %w", kind, err)
				}
				m.slots[kind] = a
				buf = buf[n:]
				continue
			}
			// Unknown field (future AssetKind or future top-level field):
			// ignored for forward compatibility.
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return nil, fmt.Errorf("decode manifest: skip unknown field %d: %w", num, protowire.ParseError(n))
			}
			buf = buf[n:]
		}
	}
	return m, nil
}

// sortedKinds is a small helper used by the asset-plan validation code to
// present a stable, human-readable ordering in error messages.
func sortedKinds(ks []AssetKind) []AssetKind {
	out := append([]AssetKind(nil), ks...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
