package registry

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/qcache/internal/field"
)

//go:embed categories.cue
var defaultCategoriesCUE []byte

// Category is a business-object kind. Each category is installed in the
// store as an abstract superclass that resource classes extend.
type Category struct {
	Name    string
	Virtual bool

	// Identity lists the mandatory, immutable key fields of ordinary
	// categories. Always empty for virtual categories.
	Identity []field.Field
}

// DefinitionError reports an invalid category definition.
type DefinitionError struct {
	Category string
	Message  string
	Pos      token.Pos
}

func (e *DefinitionError) Error() string {
	prefix := "categories"
	if e.Category != "" {
		prefix += "." + e.Category
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), prefix, e.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// DefaultCategories returns the built-in category set.
func DefaultCategories() []Category {
	cats, err := ParseCategories("categories.cue", defaultCategoriesCUE)
	if err != nil {
		panic(fmt.Sprintf("embedded categories: %v", err))
	}
	return cats
}

// LoadCategoriesFile parses category definitions from a CUE file.
func LoadCategoriesFile(path string) ([]Category, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories: %w", err)
	}
	return ParseCategories(path, src)
}

// ParseCategories compiles CUE source declaring a top-level "categories"
// struct and returns its categories sorted by name.
//
//	categories: {
//		Catalog: identity: [{name: "Ref_Key", type: "GUID"}]
//		AccumulationRegisterBalance: virtual: true
//	}
func ParseCategories(filename string, src []byte) ([]Category, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	catsVal := v.LookupPath(cue.ParsePath("categories"))
	if !catsVal.Exists() {
		return nil, &DefinitionError{Message: "no categories declared", Pos: v.Pos()}
	}

	iter, err := catsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var cats []Category
	for iter.Next() {
		cat, err := parseCategory(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		cats = append(cats, cat)
	}
	if len(cats) == 0 {
		return nil, &DefinitionError{Message: "no categories declared", Pos: catsVal.Pos()}
	}

	sortCategories(cats)
	return cats, nil
}

func sortCategories(cats []Category) {
	slices.SortFunc(cats, func(a, b Category) int { return strings.Compare(a.Name, b.Name) })
}

func parseCategory(name string, v cue.Value) (Category, error) {
	cat := Category{Name: name}
	if strings.HasPrefix(strings.ToLower(name), "qc_") {
		return Category{}, &DefinitionError{Category: name, Message: "reserved name", Pos: v.Pos()}
	}

	if vv := v.LookupPath(cue.ParsePath("virtual")); vv.Exists() {
		virtual, err := concrete(vv).Bool()
		if err != nil {
			return Category{}, formatCUEError(err)
		}
		cat.Virtual = virtual
	}

	idVal := v.LookupPath(cue.ParsePath("identity"))
	if idVal.Exists() {
		list, err := concrete(idVal).List()
		if err != nil {
			return Category{}, formatCUEError(err)
		}
		for list.Next() {
			f, err := parseField(name, list.Value())
			if err != nil {
				return Category{}, err
			}
			if IsSystemField(f.Name) {
				return Category{}, &DefinitionError{
					Category: name,
					Message:  fmt.Sprintf("identity field %q is a system field", f.Name),
					Pos:      list.Value().Pos(),
				}
			}
			cat.Identity = append(cat.Identity, f)
		}
	}

	if cat.Virtual && len(cat.Identity) > 0 {
		return Category{}, &DefinitionError{
			Category: name,
			Message:  "virtual categories have no identity fields",
			Pos:      idVal.Pos(),
		}
	}
	return cat, nil
}

func parseField(category string, v cue.Value) (field.Field, error) {
	name, err := v.LookupPath(cue.ParsePath("name")).String()
	if err != nil {
		return field.Field{}, formatCUEError(err)
	}
	typeName, err := v.LookupPath(cue.ParsePath("type")).String()
	if err != nil {
		return field.Field{}, formatCUEError(err)
	}
	typ, err := field.ParseType(typeName)
	if err != nil {
		return field.Field{}, &DefinitionError{Category: category, Message: err.Error(), Pos: v.Pos()}
	}

	f := field.New(name, typ)
	if err := f.Validate(); err != nil {
		return field.Field{}, &DefinitionError{Category: category, Message: err.Error(), Pos: v.Pos()}
	}
	return f, nil
}

// concrete resolves a value to its default, if it has one.
func concrete(v cue.Value) cue.Value {
	if d, ok := v.Default(); ok {
		return d
	}
	return v
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &DefinitionError{Message: first.Error(), Pos: positions[0]}
	}
	return err
}
