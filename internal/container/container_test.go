package container

import (
	"bytes"
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func samplePlan(t *testing.T) *AssetPlan {
	t.Helper()
	weights, err := NewPlannedAsset(ModelWeights, BufferSource{Data: []byte("fake onnx weights")})
	require.NoError(t, err)
	cfg, err := NewPlannedAsset(ModelConfig, BufferSource{Data: []byte(`{"model_type":"embedding","pad_token_id":0}`)})
	require.NoError(t, err)
	tok, err := NewPlannedAsset(Tokenizer, BufferSource{Data: []byte("fake tokenizer json")})
	require.NoError(t, err)

	plan, err := NewAssetPlan(Embedding, []PlannedAsset{tok, weights, cfg})
	require.NoError(t, err)
	return plan
}

func TestAssetPlanCanonicalOrder(t *testing.T) {
	plan := samplePlan(t)
	require.Len(t, plan.Assets, 3)
	require.Equal(t, ModelWeights, plan.Assets[0].Kind)
	require.Equal(t, ModelConfig, plan.Assets[1].Kind)
	require.Equal(t, Tokenizer, plan.Assets[2].Kind)
}

func TestAssetPlanRejectsDuplicateKind(t *testing.T) {
	a, _ := NewPlannedAsset(ModelWeights, BufferSource{Data: []byte("a")})
	b, _ := NewPlannedAsset(ModelWeights, BufferSource{Data: []byte("b")})
	_, err := NewAssetPlan(Embedding, []PlannedAsset{a, b})
	require.Error(t, err)
	require.Contains(t, strings.ToLower(err.Error()), "duplicate asset kind")
	var dup *DuplicateAssetKindError
	require.ErrorAs(t, err, &dup)
}

func TestAssetPlanRejectsMissingRequired(t *testing.T) {
	weights, _ := NewPlannedAsset(ModelWeights, BufferSource{Data: []byte("w")})
	_, err := NewAssetPlan(Embedding, []PlannedAsset{weights})
	require.Error(t, err)
	var missing *MissingRequiredAssetError
	require.ErrorAs(t, err, &missing)
}

func TestAssetPlanRejectsDisallowedKind(t *testing.T) {
	weights, _ := NewPlannedAsset(ModelWeights, BufferSource{Data: []byte("w")})
	cfg, _ := NewPlannedAsset(ModelConfig, BufferSource{Data: []byte("c")})
	tok, _ := NewPlannedAsset(Tokenizer, BufferSource{Data: []byte("t")})
	// Every declared AssetKind is required or optional under today's single
	// shared policy, so the out-of-policy asset uses a kind value past the
	// last declared one. The in-policy plan and the policy's own answers are
	// checked alongside.
	plan, err := NewAssetPlan(Embedding, []PlannedAsset{weights, cfg, tok})
	require.NoError(t, err)
	require.Len(t, plan.Assets, 3)

	pol := policyFor(Embedding)
	require.True(t, pol.allows(Transform))
	require.True(t, pol.allows(ModelWeights))
	require.False(t, pol.allows(AssetKind(numAssetKinds)))

	extra, _ := NewPlannedAsset(AssetKind(numAssetKinds), BufferSource{Data: []byte("x")})
	_, err = NewAssetPlan(Embedding, []PlannedAsset{weights, cfg, tok, extra})
	require.Error(t, err)
	var disallowed *DisallowedAssetError
	require.ErrorAs(t, err, &disallowed)
}

func TestManifestSetArtifactAndOffset(t *testing.T) {
	m := &Manifest{ModelName: "m", Version: "v1"}
	m.SetArtifact(ModelWeights, Artifact{Length: 10, SHA256: sha256.Sum256([]byte("x"))})
	require.NoError(t, m.SetOffset(ModelWeights, 42))

	slot, ok := m.GetSlot(ModelWeights)
	require.True(t, ok)
	require.EqualValues(t, 42, slot.Offset)

	err := m.SetOffset(Transform, 1)
	require.Error(t, err)
}

func TestManifestArtifactsIterCanonicalOrder(t *testing.T) {
	m := &Manifest{}
	// Insert out of canonical order.
	m.SetArtifact(Tokenizer, Artifact{Length: 1})
	m.SetArtifact(ModelWeights, Artifact{Length: 2})
	m.SetArtifact(ModelConfig, Artifact{Length: 3})

	iter := m.ArtifactsIter()
	require.Len(t, iter, 3)
	require.Equal(t, ModelWeights, iter[0].Kind)
	require.Equal(t, ModelConfig, iter[1].Kind)
	require.Equal(t, Tokenizer, iter[2].Kind)
}

func TestManifestEncodeDecodeRoundTrip(t *testing.T) {
	m := &Manifest{ModelName: "bge-small", Version: "1.5", ModelType: SentenceEmbedding, Backend: BackendONNX}
	m.SetArtifact(ModelWeights, Artifact{Offset: 7, Length: 100, SHA256: sha256.Sum256([]byte("w"))})
	m.SetArtifact(Transform, Artifact{Offset: 107, Length: 50, SHA256: sha256.Sum256([]byte("t"))})

	buf := m.Encode()
	got, err := Decode(buf)
	require.NoError(t, err)

	require.Equal(t, m.ModelName, got.ModelName)
	require.Equal(t, m.Version, got.Version)
	require.Equal(t, m.ModelType, got.ModelType)
	require.Equal(t, m.Backend, got.Backend)

	for _, k := range []AssetKind{ModelWeights, Transform} {
		want, _ := m.GetSlot(k)
		have, ok := got.GetSlot(k)
		require.True(t, ok)
		require.Equal(t, want, have)
	}
	_, ok := got.GetSlot(ModelConfig)
	require.False(t, ok)
}

func TestWriteReadRoundTrip(t *testing.T) {
	plan := samplePlan(t)
	base := []byte("#!/bin/fake-base-executable\n")

	var out bytes.Buffer
	err := Write(bytes.NewReader(base), WriteParams{
		ModelName: "bge-small-en-v1.5",
		Version:   "1",
		ModelType: Embedding,
		Backend:   BackendONNX,
		Plan:      plan,
	}, &out)
	require.NoError(t, err)

	data := out.Bytes()
	require.True(t, bytes.HasPrefix(data, base), "base executable bytes must be prepended verbatim")

	r, err := Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Equal(t, "bge-small-en-v1.5", r.Manifest().ModelName)

	for _, a := range plan.Assets {
		sr, err := r.OpenRequired(a.Kind)
		require.NoError(t, err)
		got := make([]byte, sr.Size())
		_, err = sr.Read(got)
		require.NoError(t, err)
		require.Equal(t, sha256.Sum256(got), a.SHA256)
		require.NoError(t, r.VerifyRequired(a.Kind))
	}
}

func TestWriteSupportsNonZeroAbsoluteOffset(t *testing.T) {
	plan := samplePlan(t)
	prefix := bytes.Repeat([]byte{0xAB}, 1000)

	var out bytes.Buffer
	err := Write(bytes.NewReader(prefix), WriteParams{
		ModelName: "m",
		Version:   "v",
		ModelType: Embedding,
		Backend:   BackendONNX,
		Plan:      plan,
	}, &out)
	require.NoError(t, err)

	data := out.Bytes()
	r, err := Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.EqualValues(t, len(prefix), r.footer.MetadataOffset)

	sr, err := r.OpenRequired(ModelWeights)
	require.NoError(t, err)
	got := make([]byte, sr.Size())
	_, err = sr.Read(got)
	require.NoError(t, err)
	require.Equal(t, "fake onnx weights", string(got))
}

func TestReadRejectsTruncatedFile(t *testing.T) {
	plan := samplePlan(t)
	var out bytes.Buffer
	err := Write(bytes.NewReader([]byte("base")), WriteParams{
		ModelName: "m", Version: "v", ModelType: Embedding, Backend: BackendONNX, Plan: plan,
	}, &out)
	require.NoError(t, err)

	full := out.Bytes()

	// Truncate the last byte — the footer itself is now unreadable.
	truncatedFooter := full[:len(full)-1]
	_, err = Open(bytes.NewReader(truncatedFooter), int64(len(truncatedFooter)))
	require.Error(t, err)

	// Truncate to one byte past metadata_offset, well before
	// metadata_offset+metadata_length (the footer is cut off with it).
	footer, err := ReadFooter(bytes.NewReader(full))
	require.NoError(t, err)
	cut := int64(footer.MetadataOffset) + 1
	truncatedManifest := full[:cut]
	_, err = Open(bytes.NewReader(truncatedManifest), int64(len(truncatedManifest)))
	require.Error(t, err)
}

func TestDuplicateAssetKindScenarioMessage(t *testing.T) {
	a, _ := NewPlannedAsset(ModelWeights, BufferSource{Data: []byte("a")})
	b, _ := NewPlannedAsset(ModelWeights, BufferSource{Data: []byte("b")})
	_, err := NewAssetPlan(Embedding, []PlannedAsset{a, b})
	require.ErrorContains(t, err, "duplicate asset kind")
}
