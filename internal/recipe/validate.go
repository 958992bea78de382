package recipe

import (
	"regexp"
	"strconv"
)

var checksumHexPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Validate checks the invariants from spec.md §3/§4.B and returns the first
// violation found, wrapped in a distinct ValidationError kind. A nil return
// means the recipe is well-formed enough for the pipeline to run.
func (r *Recipe) Validate() error {
	if r.Name == "" {
		return &ValidationError{Kind: ErrMissingField, Field: "name", Msg: "name is required"}
	}
	if r.Version == "" {
		return &ValidationError{Kind: ErrMissingField, Field: "version", Msg: "version is required"}
	}
	if r.Release == "" {
		return &ValidationError{Kind: ErrMissingField, Field: "release", Msg: "release is required"}
	}
	if len(r.Architectures) == 0 {
		return &ValidationError{Kind: ErrMissingField, Field: "architectures", Msg: "at least one architecture is required"}
	}

	if len(r.Checksums) != 0 && len(r.Checksums) != len(r.Sources) {
		return &ValidationError{
			Kind:  ErrChecksumArity,
			Field: "checksums",
			Msg:   "checksums must be empty or aligned 1:1 with sources",
		}
	}

	for i, sum := range r.Checksums {
		if sum == SkipChecksum {
			continue
		}
		if !checksumHexPattern.MatchString(sum) {
			return &ValidationError{
				Kind:  ErrChecksumFormat,
				Field: r.sourceLabel(i),
				Msg:   "checksum must be SKIP or 64 lowercase hex characters",
			}
		}
	}

	return nil
}

func (r *Recipe) sourceLabel(i int) string {
	if i < len(r.Sources) {
		return r.Sources[i]
	}
	return "checksums[" + strconv.Itoa(i) + "]"
}
