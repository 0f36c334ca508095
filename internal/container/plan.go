package container

import (
	"sort"
)

// PlannedAsset is a single asset prepared for writing: its kind, its length
// and hash (computed eagerly so the manifest can be sized without re-reading
// source bytes), and the source that will eventually supply the bytes.
type PlannedAsset struct {
	Kind   AssetKind
	Length uint64
	SHA256 [32]byte
	Source AssetSource
}

// NewPlannedAsset computes Length and SHA256 from src eagerly.
func NewPlannedAsset(kind AssetKind, src AssetSource) (PlannedAsset, error) {
	size, err := src.Size()
	if err != nil {
		return PlannedAsset{}, err
	}
	sum, err := src.SHA256()
	if err != nil {
		return PlannedAsset{}, err
	}
	return PlannedAsset{Kind: kind, Length: uint64(size), SHA256: sum, Source: src}, nil
}

// policy describes which AssetKinds a ModelKind requires and permits.
// All four model kinds currently share one policy.
type policy struct {
	required map[AssetKind]bool
	optional map[AssetKind]bool
}

func policyFor(ModelKind) policy {
	return policy{
		required: map[AssetKind]bool{
			ModelWeights: true,
			ModelConfig:  true,
			Tokenizer:    true,
		},
		optional: map[AssetKind]bool{
			Transform: true,
		},
	}
}

func (p policy) allows(k AssetKind) bool {
	return p.required[k] || p.optional[k]
}

// AssetPlan is a validated, ordered sequence of PlannedAssets: sorted by
// AssetKind canonical order, free of duplicate kinds, and conformant with
// the target ModelKind's required/optional policy.
type AssetPlan struct {
	Model  ModelKind
	Assets []PlannedAsset
}

// NewAssetPlan sorts assets by AssetKind, rejects duplicate kinds, and
// checks every required kind is present and every present kind is allowed
// for model.
func NewAssetPlan(model ModelKind, assets []PlannedAsset) (*AssetPlan, error) {
	sorted := append([]PlannedAsset(nil), assets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Kind < sorted[j].Kind })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Kind == sorted[i-1].Kind {
			return nil, &DuplicateAssetKindError{Kind: sorted[i].Kind}
		}
	}

	pol := policyFor(model)
	present := make(map[AssetKind]bool, len(sorted))
	for _, a := range sorted {
		present[a.Kind] = true
		if !pol.allows(a.Kind) {
			return nil, &DisallowedAssetError{Kind: a.Kind, Model: model}
		}
	}
	var missing []AssetKind
	for k := range pol.required {
		if !present[k] {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		first := sortedKinds(missing)[0]
		return nil, &MissingRequiredAssetError{Kind: first, Model: model}
	}

	return &AssetPlan{Model: model, Assets: sorted}, nil
}

// find returns the PlannedAsset for kind, if present.
func (p *AssetPlan) find(kind AssetKind) (PlannedAsset, bool) {
	for _, a := range p.Assets {
		if a.Kind == kind {
			return a, true
		}
	}
	return PlannedAsset{}, false
}
