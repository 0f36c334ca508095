package container

import (
	"fmt"
	"io"
)

// WriteParams bundles the manifest-level fields and the validated asset
// plan that Write seals into a container.
type WriteParams struct {
	ModelName string
	Version   string
	ModelType ModelKind
	Backend   Backend
	Plan      *AssetPlan
}

// Write prepends raw asset bytes to base behind a manifest, writing the
// result to sink:
//
//	[ base bytes, verbatim ]
//	[ encoded manifest      ]
//	[ asset bytes, canonical order ]
//	[ 32-byte footer        ]
//
// base may itself be preceded by arbitrary bytes already consumed from a
// larger stream — Write only cares about how many bytes it personally
// copies from base, which becomes metadata_offset.
//
// The manifest's wire encoding is length-delimited and value-dependent:
// inserting offsets can change its encoded size, invalidating those very
// offsets. Write therefore runs a fixup pass:
// encode once with placeholder offsets, assign real offsets assuming that
// size, re-encode, and — only if the size changed — repeat once more,
// asserting convergence.
func Write(base io.Reader, params WriteParams, sink io.Writer) error {
	if params.Plan == nil {
		return fmt.Errorf("write: nil asset plan")
	}

	baseLen, err := io.Copy(sink, base)
	if err != nil {
		return fmt.Errorf("write: copy base executable: %w", err)
	}

	m := &Manifest{
		ModelName: params.ModelName,
		Version:   params.Version,
		ModelType: params.ModelType,
		Backend:   params.Backend,
	}
	for _, a := range params.Plan.Assets {
		m.SetArtifact(a.Kind, Artifact{Offset: 0, Length: a.Length, SHA256: a.SHA256})
	}

	l0 := len(m.Encode())
	assignOffsets(m, params.Plan, uint64(l0))
	buf1 := m.Encode()
	l1 := len(buf1)

	final := buf1
	if l1 != l0 {
		assignOffsets(m, params.Plan, uint64(l1))
		buf2 := m.Encode()
		l2 := len(buf2)
		if l2 != l1 {
			return fmt.Errorf("write: manifest size did not converge after one fixup iteration (L1=%d, L2=%d) — offsets exceeded the format's stabilization guarantee", l1, l2)
		}
		final = buf2
	}

	if _, err := sink.Write(final); err != nil {
		return fmt.Errorf("write: write manifest: %w", err)
	}

	for _, a := range params.Plan.Assets {
		n, err := a.Source.WriteTo(sink)
		if err != nil {
			return fmt.Errorf("write: write asset %s: %w", a.Kind, err)
		}
		if uint64(n) != a.Length {
			return fmt.Errorf("write: asset %s: wrote %d bytes, planned %d", a.Kind, n, a.Length)
		}
	}

	footer := &Footer{
		FormatVersion:  FormatVersion,
		MetadataOffset: uint64(baseLen),
		MetadataLength: uint64(len(final)),
		Flags:          FlagMetadataLengthDelimited,
	}
	if err := footer.Write(sink); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// assignOffsets sets each slot's offset to manifestLen plus the sum of the
// lengths of every asset preceding it in canonical (plan) order.
func assignOffsets(m *Manifest, plan *AssetPlan, manifestLen uint64) {
	offset := manifestLen
	for _, a := range plan.Assets {
		_ = m.SetOffset(a.Kind, offset)
		offset += a.Length
	}
}
