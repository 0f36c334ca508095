package container

import "fmt"

// DuplicateAssetKindError is returned when an AssetPlan is constructed from
// two PlannedAssets sharing the same AssetKind.
type DuplicateAssetKindError struct {
	Kind AssetKind
}

func (e *DuplicateAssetKindError) Error() string {
	return fmt.Sprintf("duplicate asset kind: %s", e.Kind)
}

// MissingRequiredAssetError is returned when an AssetPlan omits a kind the
// target ModelKind's policy requires.
type MissingRequiredAssetError struct {
	Kind  AssetKind
	Model ModelKind
}

func (e *MissingRequiredAssetError) Error() string {
	return fmt.Sprintf("missing required asset %s for model kind %s", e.Kind, e.Model)
}

// DisallowedAssetError is returned when an AssetPlan contains a kind that is
// neither required nor optional for the target ModelKind.
type DisallowedAssetError struct {
	Kind  AssetKind
	Model ModelKind
}

func (e *DisallowedAssetError) Error() string {
	return fmt.Sprintf("asset kind %s is not allowed for model kind %s", e.Kind, e.Model)
}

// InvalidFormatError is returned when the footer magic or version/flags
// combination does not validate.
type InvalidFormatError struct {
	Reason string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid encoderfile format: %s", e.Reason)
}

// TruncatedError is returned when a container's declared manifest or asset
// byte ranges run past the end of the file.
type TruncatedError struct {
	Reason string
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated encoderfile: %s", e.Reason)
}

// MissingRequiredAssetAtReadError is returned by Reader.OpenRequired when a
// required slot is absent from a decoded manifest.
type MissingRequiredAssetAtReadError struct {
	Kind AssetKind
}

func (e *MissingRequiredAssetAtReadError) Error() string {
	return fmt.Sprintf("missing required asset in container: %s", e.Kind)
}
