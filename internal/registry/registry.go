package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/qcache/internal/docstore"
	"github.com/roach88/qcache/internal/field"
	"github.com/roach88/qcache/internal/fingerprint"
)

// System fields carried by every resource class.
const (
	// StampField holds the batch timestamp (unix milliseconds).
	StampField = "qc_stamp"

	// DiscriminatorField holds the fingerprint discriminator of virtual
	// table rows.
	DiscriminatorField = "qc_discriminator"
)

// Registry errors.
var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrKindMismatch    = errors.New("virtuality does not match category")
	ErrReservedName    = errors.New("reserved name")
	ErrNotInitialized  = errors.New("registry not initialized")
)

// IsSystemField reports whether name is a field the registry manages itself.
func IsSystemField(name string) bool {
	return name == StampField || name == DiscriminatorField
}

// StampDescriptor returns the batch timestamp field.
func StampDescriptor() field.Field { return field.New(StampField, field.LONG) }

// DiscriminatorDescriptor returns the discriminator field.
func DiscriminatorDescriptor() field.Field { return field.New(DiscriminatorField, field.STRING) }

// schema is the mirrored state of one resource class.
type schema struct {
	category string
	virtual  bool
	declared field.Set
}

// Registry maintains one schema per resource in the store, rooted at the
// category superclasses. Schemas are append-only.
//
// Registry is safe for concurrent use; EnsureSchema calls are serialized.
type Registry struct {
	store      docstore.Store
	categories map[string]Category

	mu          sync.RWMutex
	initialized bool
	schemas     map[string]schema
}

// New creates a registry over store with the given categories.
// Call Init before use.
func New(store docstore.Store, categories []Category) *Registry {
	byName := make(map[string]Category, len(categories))
	for _, c := range categories {
		byName[c.Name] = c
	}
	return &Registry{
		store:      store,
		categories: byName,
		schemas:    make(map[string]schema),
	}
}

// Init installs one abstract superclass per category. Ordinary categories
// declare their identity fields (mandatory, immutable) and the stamp;
// virtual categories declare the stamp and the discriminator.
// Init is idempotent.
func (r *Registry) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cat := range r.Categories() {
		ok, err := r.store.ClassExists(ctx, cat.Name)
		if err != nil {
			return fmt.Errorf("init category %s: %w", cat.Name, err)
		}
		if !ok {
			if err := r.store.CreateClass(ctx, cat.Name, "", true); err != nil {
				return fmt.Errorf("init category %s: %w", cat.Name, err)
			}
		}

		for _, p := range superclassProperties(cat) {
			if _, err := r.store.CreateProperty(ctx, cat.Name, p); err != nil {
				return fmt.Errorf("init category %s: %w", cat.Name, err)
			}
		}
	}
	r.initialized = true
	return nil
}

func superclassProperties(cat Category) []docstore.Property {
	var props []docstore.Property
	for _, f := range cat.Identity {
		props = append(props, docstore.Property{Field: f, Mandatory: true, Immutable: true})
	}
	props = append(props, docstore.Property{Field: StampDescriptor(), Mandatory: true})
	if cat.Virtual {
		props = append(props, docstore.Property{Field: DiscriminatorDescriptor(), Mandatory: true})
	}
	return props
}

// Categories returns the configured categories sorted by name.
func (r *Registry) Categories() []Category {
	out := make([]Category, 0, len(r.categories))
	for _, c := range r.categories {
		out = append(out, c)
	}
	sortCategories(out)
	return out
}

// Category looks up a category by name.
func (r *Registry) Category(name string) (Category, bool) {
	c, ok := r.categories[name]
	return c, ok
}

// EnsureSchema makes the resource class exist with at least fields.
//
// A missing class is created under the category superclass with the
// requested fields. An existing ordinary class gains the fields it lacks;
// altered reports whether any field was added, which obliges the caller to
// purge the class's rows. An existing virtual class is never altered.
func (r *Registry) EnsureSchema(ctx context.Context, res fingerprint.Resource, fields field.Set, virtual bool) (altered bool, err error) {
	cat, ok := r.categories[res.Category]
	if !ok {
		return false, fmt.Errorf("ensure schema %s: %w: %q", res, ErrUnknownCategory, res.Category)
	}
	if cat.Virtual != virtual {
		return false, fmt.Errorf("ensure schema %s: %w", res, ErrKindMismatch)
	}
	if _, clash := r.categories[res.Name]; clash {
		return false, fmt.Errorf("ensure schema %s: %w: %q names a category", res, ErrReservedName, res.Name)
	}
	for _, name := range fields.Names() {
		if IsSystemField(name) {
			return false, fmt.Errorf("ensure schema %s: %w: field %q", res, ErrReservedName, name)
		}
	}
	for _, id := range cat.Identity {
		if f, ok := fields.Get(id.Name); ok && f.Type != id.Type {
			return false, fmt.Errorf("ensure schema %s: %w: %s is %s on %s",
				res, docstore.ErrPropertyConflict, f, id.Type, cat.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return false, ErrNotInitialized
	}

	sc, known, err := r.loadLocked(ctx, res.Name)
	if err != nil {
		return false, fmt.Errorf("ensure schema %s: %w", res, err)
	}

	if !known {
		if err := r.store.CreateClass(ctx, res.Name, cat.Name, false); err != nil {
			return false, fmt.Errorf("ensure schema %s: %w", res, err)
		}
		if err := r.addFields(ctx, res.Name, fields.Fields()); err != nil {
			return false, fmt.Errorf("ensure schema %s: %w", res, err)
		}
		if _, err := r.refreshLocked(ctx, res.Name, cat); err != nil {
			return false, fmt.Errorf("ensure schema %s: %w", res, err)
		}
		return false, nil
	}

	if sc.category != cat.Name {
		return false, fmt.Errorf("ensure schema %s: %w: registered under %s", res, ErrKindMismatch, sc.category)
	}
	if sc.virtual {
		return false, nil
	}

	missing := sc.declared.Missing(fields)
	if len(missing) == 0 {
		return false, nil
	}
	if err := r.addFields(ctx, res.Name, missing); err != nil {
		return false, fmt.Errorf("ensure schema %s: %w", res, err)
	}
	if _, err := r.refreshLocked(ctx, res.Name, cat); err != nil {
		return false, fmt.Errorf("ensure schema %s: %w", res, err)
	}
	return true, nil
}

func (r *Registry) addFields(ctx context.Context, class string, fields []field.Field) error {
	for _, f := range fields {
		if _, err := r.store.CreateProperty(ctx, class, docstore.Property{Field: f}); err != nil {
			return err
		}
	}
	return nil
}

// DeclaredFields returns the data fields of a resource class, identity
// fields included and system fields excluded. The set is empty when the
// resource has no schema yet.
func (r *Registry) DeclaredFields(ctx context.Context, name string) (field.Set, error) {
	r.mu.RLock()
	sc, ok := r.schemas[name]
	r.mu.RUnlock()
	if ok {
		return sc.declared, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	sc, known, err := r.loadLocked(ctx, name)
	if err != nil {
		return field.Set{}, fmt.Errorf("declared fields of %s: %w", name, err)
	}
	if !known {
		return field.Set{}, nil
	}
	return sc.declared, nil
}

// Field looks up one declared field of a resource class. System fields
// resolve too.
func (r *Registry) Field(ctx context.Context, resource, name string) (field.Field, bool, error) {
	switch name {
	case StampField:
		return StampDescriptor(), true, nil
	case DiscriminatorField:
		return DiscriminatorDescriptor(), true, nil
	}
	declared, err := r.DeclaredFields(ctx, resource)
	if err != nil {
		return field.Field{}, false, err
	}
	f, ok := declared.Get(name)
	return f, ok, nil
}

// IsVirtual reports whether a known resource class is a virtual table.
func (r *Registry) IsVirtual(name string) (virtual, known bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sc, ok := r.schemas[name]
	return sc.virtual, ok
}

// loadLocked returns the mirrored schema of class, loading it from the
// store when the class exists but has not been seen yet. r.mu must be held
// for writing.
func (r *Registry) loadLocked(ctx context.Context, class string) (schema, bool, error) {
	if sc, ok := r.schemas[class]; ok {
		return sc, true, nil
	}
	exists, err := r.store.ClassExists(ctx, class)
	if err != nil || !exists {
		return schema{}, false, err
	}

	props, err := r.store.PropertiesOf(ctx, class)
	if err != nil {
		return schema{}, false, err
	}
	owner := ""
	for _, p := range props {
		if p.Field.Name == StampField {
			owner = p.Owner
		}
	}
	cat, ok := r.categories[owner]
	if !ok {
		return schema{}, false, fmt.Errorf("%w: class %s is not under a category superclass", ErrUnknownCategory, class)
	}
	sc, err := r.refreshLocked(ctx, class, cat)
	return sc, err == nil, err
}

// refreshLocked reloads the mirror of class from the store.
func (r *Registry) refreshLocked(ctx context.Context, class string, cat Category) (schema, error) {
	props, err := r.store.PropertiesOf(ctx, class)
	if err != nil {
		return schema{}, err
	}
	fields := make([]field.Field, 0, len(props))
	for _, p := range props {
		if IsSystemField(p.Field.Name) {
			continue
		}
		fields = append(fields, p.Field)
	}
	sc := schema{category: cat.Name, virtual: cat.Virtual, declared: field.NewSet(fields...)}
	r.schemas[class] = sc
	return sc, nil
}
