// Package recipe defines the in-memory recipe model and its two parser
// front-ends (shell-recipe and declarative-recipe), plus validation and
// declarative-to-shell lowering.
package recipe

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Hook names form a closed enumeration, run in this fixed order by the pipeline.
const (
	HookPrepare = "prepare"
	HookBuild   = "build"
	HookCheck   = "check"
	HookPackage = "package"
)

// hookNames lists the recognized hooks in execution order.
var hookNames = []string{HookPrepare, HookBuild, HookCheck, HookPackage}

// SkipChecksum is the sentinel checksum value that disables verification
// for the corresponding source.
const SkipChecksum = "SKIP"

// Recipe is the immutable, parsed representation of one package recipe.
// Both front-ends (shell-recipe, declarative-recipe) produce this same
// model; the pipeline and archive composer never see the source text again
// except through the original body passed alongside the parsed Recipe for
// cache-key derivation.
type Recipe struct {
	Name        string
	Version     string
	Release     string
	Description string
	URL         string

	// Architectures is non-empty once validated; Architectures[0] is the default.
	Architectures []string
	Licenses      []string

	RuntimeDependencies []ConstrainedName
	BuildDependencies   []ConstrainedName

	// Conflicts supplements the spec: an optional, explicit list of package
	// names this recipe cannot coexist with. It is the only conflict list the
	// pipeline's conflict probe reads; pipeline.Options has no separate one.
	Conflicts []string

	// Sources and Checksums are aligned 1:1 when Checksums is non-empty.
	Sources   []string
	Checksums []string

	// Hooks maps a hook name to its body text. A missing key means "no-op".
	Hooks map[string]string
}

// Hook returns the body of the named hook, or "" if it was not defined.
func (r *Recipe) Hook(name string) string {
	if r.Hooks == nil {
		return ""
	}
	return r.Hooks[name]
}

// DefaultArchitecture returns Architectures[0], or "any" when the list is empty.
func (r *Recipe) DefaultArchitecture() string {
	if len(r.Architectures) == 0 {
		return "any"
	}
	return r.Architectures[0]
}

// Relation is the comparison operator in a constrained dependency name.
type Relation int

const (
	RelationNone Relation = iota
	RelationEq
	RelationGe
	RelationLe
	RelationGt
	RelationLt
)

// String renders the relation as the operator text used in constraint strings.
func (r Relation) String() string {
	switch r {
	case RelationEq:
		return "="
	case RelationGe:
		return ">="
	case RelationLe:
		return "<="
	case RelationGt:
		return ">"
	case RelationLt:
		return "<"
	default:
		return ""
	}
}

// ConstrainedName is the parsed form of a dependency string like "compiler>=4.7".
type ConstrainedName struct {
	Name     string
	Version  string
	Relation Relation
}

// String renders the constrained name back to its canonical text form.
func (c ConstrainedName) String() string {
	if c.Relation == RelationNone {
		return c.Name
	}
	return c.Name + c.Relation.String() + c.Version
}

// relationOperators is ordered longest-first so that ">=" is matched before
// ">" and "<=" before "<", per the spec's precedence rule.
var relationOperators = []struct {
	op  string
	rel Relation
}{
	{">=", RelationGe},
	{"<=", RelationLe},
	{">", RelationGt},
	{"<", RelationLt},
	{"=", RelationEq},
}

// ParseConstrainedName parses a dependency string into its name/relation/version
// parts. The relation is determined by the longest matching operator among
// ">=", "<=", ">", "<", "=", tried in that order. An absent operator yields
// RelationNone with no version.
func ParseConstrainedName(s string) ConstrainedName {
	for _, cand := range relationOperators {
		if idx := strings.Index(s, cand.op); idx >= 0 {
			return ConstrainedName{
				Name:     s[:idx],
				Relation: cand.rel,
				Version:  s[idx+len(cand.op):],
			}
		}
	}
	return ConstrainedName{Name: s, Relation: RelationNone}
}

// ParseConstrainedNames parses an ordered list of dependency strings.
func ParseConstrainedNames(items []string) []ConstrainedName {
	out := make([]ConstrainedName, 0, len(items))
	for _, item := range items {
		out = append(out, ParseConstrainedName(item))
	}
	return out
}

// Satisfies reports whether installedVersion satisfies this constraint.
// RelationNone is satisfied by any version. A version that doesn't parse as
// semver falls back to a direct equality check against c.Version, so a
// recipe depending on a non-semver-versioned package (e.g. "901" or a VCS
// snapshot tag) still gets an exact-match probe instead of a probe error.
func (c ConstrainedName) Satisfies(installedVersion string) bool {
	if c.Relation == RelationNone {
		return true
	}

	constraintOp := c.Relation.String()
	constraint, err := semver.NewConstraint(constraintOp + c.Version)
	if err != nil {
		return installedVersion == c.Version
	}

	installed, err := semver.NewVersion(installedVersion)
	if err != nil {
		return installedVersion == c.Version
	}

	return constraint.Check(installed)
}

// ErrorKind identifies a distinct recipe validation failure.
type ErrorKind string

const (
	ErrInvalidFormat    ErrorKind = "InvalidRecipeFormat"
	ErrMissingField     ErrorKind = "MissingRequiredField"
	ErrChecksumArity    ErrorKind = "ChecksumArityMismatch"
	ErrChecksumFormat   ErrorKind = "ChecksumFormat"
)

// ValidationError reports one validation failure with the distinct kind and
// the offending field/entity name, per spec.md §7.
type ValidationError struct {
	Kind  ErrorKind
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}
