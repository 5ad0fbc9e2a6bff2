package resultcache

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/roach88/qcache/internal/condition"
	"github.com/roach88/qcache/internal/docstore"
	"github.com/roach88/qcache/internal/field"
	"github.com/roach88/qcache/internal/fingerprint"
	"github.com/roach88/qcache/internal/registry"
)

var (
	errSystemField  = errors.New("row sets a system field")
	errFrozenSchema = errors.New("virtual table schema is fixed")
)

// storeBatch writes rows as one batch for fp. The resource lock must be held.
//
// Schema growth happens first and purges every row of the resource, since
// rows written under the old schema lack the new columns. The scoped delete
// and the inserts then run in a single transaction.
func (c *Cache) storeBatch(ctx context.Context, rows []Row, fp fingerprint.Fingerprint) error {
	resource := fp.Resource().Name
	declared, err := c.registry.DeclaredFields(ctx, resource)
	if err != nil {
		return classify("store", resource, err)
	}

	if fp.Virtual() && !declared.IsEmpty() {
		if missing := declared.Missing(fp.Fields()); len(missing) > 0 {
			return schemaError("store", resource,
				fmt.Errorf("%w: %s lacks %s", errFrozenSchema, resource, field.NewSet(missing...)))
		}
	}

	// Validate against the schema the store will have, before mutating.
	target := declared
	if !fp.Virtual() || declared.IsEmpty() {
		target = declared.Union(fp.Fields())
		if cat, ok := c.registry.Category(fp.Resource().Category); ok {
			target = target.Union(field.NewSet(cat.Identity...))
		}
	}
	if err := validateRows(rows, target); err != nil {
		return schemaError("store", resource, err)
	}
	if !fp.Virtual() {
		if err := condition.Validate(fp.Condition(), target); err != nil {
			return schemaError("store", resource, err)
		}
	}

	altered, err := c.registry.EnsureSchema(ctx, fp.Resource(), fp.Fields(), fp.Virtual())
	if err != nil {
		return classify("store", resource, err)
	}
	if altered {
		if err := c.purge(ctx, resource); err != nil {
			return err
		}
	}

	tx, err := c.store.Begin(ctx)
	if err != nil {
		return classify("store", resource, err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rerr := tx.Rollback(); rerr != nil {
			c.logger.Warn("store rollback failed", "fingerprint", fp.String(), "error", rerr)
			return
		}
		c.logger.Warn("store rolled back", "fingerprint", fp.String())
	}()

	if err := c.clearScope(ctx, tx, fp); err != nil {
		return err
	}

	stamp := c.stamps.next(c.clock.Now())
	for _, row := range rows {
		rec := maps.Clone(map[string]any(row))
		if rec == nil {
			rec = make(map[string]any, 2)
		}
		rec[registry.StampField] = stamp
		if fp.Virtual() {
			rec[registry.DiscriminatorField] = fp.Discriminator()
		}
		if err := tx.Insert(ctx, resource, rec); err != nil {
			return classify("store", resource, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classify("store", resource, fmt.Errorf("%w: commit: %w", docstore.ErrConnectivity, err))
	}
	committed = true
	c.known.add(fp, stamp)

	c.logger.Debug("batch stored",
		"fingerprint", fp.String(),
		"rows", len(rows),
		"stamp", stamp)
	return nil
}

// clearScope deletes the rows the new batch replaces. Ordinary resources
// lose every row matching the condition. Virtual resources lose the rows of
// the same discriminator; on the first store of a fingerprint such rows
// must not exist at all.
func (c *Cache) clearScope(ctx context.Context, tx docstore.Tx, fp fingerprint.Fingerprint) error {
	resource := fp.Resource().Name
	if !fp.Virtual() {
		if _, err := tx.DeleteWhere(ctx, resource, fp.Condition()); err != nil {
			return classify("store", resource, err)
		}
		return nil
	}

	scope := condition.Equal(registry.DiscriminatorField, fp.Discriminator())
	if !c.known.has(fp) {
		taken, err := tx.Exists(ctx, resource, scope)
		if err != nil {
			return classify("store", resource, err)
		}
		if taken {
			c.logger.Warn("discriminator collision",
				"fingerprint", fp.String(),
				"discriminator", fp.Discriminator())
			return newCollisionError(resource, fp.Discriminator())
		}
		return nil
	}
	if _, err := tx.DeleteWhere(ctx, resource, scope); err != nil {
		return classify("store", resource, err)
	}
	return nil
}

// purge removes every row of a resource after its schema grew.
func (c *Cache) purge(ctx context.Context, resource string) error {
	n, err := c.store.DeleteWhere(ctx, resource, nil)
	if err != nil {
		return classify("store", resource, err)
	}
	flagged := c.known.markPurged(resource)
	c.metrics.recordPurge(ctx, resource)
	c.logger.Info("schema grew, resource purged",
		"resource", resource,
		"rows", n,
		"fingerprints", flagged)
	return nil
}

// validateRows checks that rows only carry declared data fields.
func validateRows(rows []Row, declared field.Set) error {
	for i, row := range rows {
		for name := range row {
			if registry.IsSystemField(name) {
				return fmt.Errorf("row %d: %w: %q", i, errSystemField, name)
			}
			if !declared.Has(name) {
				return fmt.Errorf("row %d: %w: %q", i, docstore.ErrUnknownProperty, name)
			}
		}
	}
	return nil
}
