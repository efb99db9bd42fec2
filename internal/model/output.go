package model

import "time"

// Variant distinguishes the raw and annotated copy of a saved frame.
type Variant string

const (
	VariantRaw       Variant = "raw"
	VariantAnnotated Variant = "annotated"
)

// Dir returns the directory name used for the variant in the output tree.
func (v Variant) Dir() string {
	if v == VariantAnnotated {
		return "with box"
	}
	return "without box"
}

// VariantFromDir is the inverse of Variant.Dir.
func VariantFromDir(dir string) (Variant, bool) {
	switch dir {
	case "with box":
		return VariantAnnotated, true
	case "without box":
		return VariantRaw, true
	}
	return "", false
}

// OutputRecord identifies one persisted evidence image.
type OutputRecord struct {
	Camera    string
	Day       string
	Timestamp string
	Time      time.Time
	Variant   Variant
	Path      string
}
