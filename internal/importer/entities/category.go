package entities

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/models"
)

// SnapshotRename marks a category rename. PreviousValues holds "name" (old) and "renamedTo".
const SnapshotRename = "rename"

var categoryFields = []importer.FieldDefinition{
	{Key: "name", Label: "Name", Required: true, Type: importer.FieldString,
		Aliases: []string{"nombre", "categoria", "category", "departamento"}, Example: "Bebidas"},
	{Key: "newName", Label: "New name", Type: importer.FieldString,
		Aliases:     []string{"nuevo nombre", "renombrar a", "rename to"},
		Description: "Renames an existing category and every product filed under it."},
	{Key: "description", Label: "Description", Type: importer.FieldString,
		Aliases: []string{"descripcion", "detalle"}},
	{Key: "parentName", Label: "Parent category", Type: importer.FieldString,
		Aliases: []string{"categoria padre", "padre", "parent", "parent name"}},
	{Key: "isActive", Label: "Active", Type: importer.FieldBoolean, DefaultValue: true,
		Aliases: []string{"activo", "enabled", "habilitado"}},
}

var categoryExamples = [][]string{
	{"Bebidas", "", "Bebidas frías y calientes", "", "si"},
	{"Refrescos", "Bebidas gaseosas", "", "Bebidas", "si"},
}

// CategoryHandler imports product categories. A row with a new name renames the category
// and rewrites the category of its products.
type CategoryHandler struct {
	base
	tenants    TenantStore
	categories CategoryStore
	products   ProductStore
}

func NewCategoryHandler(stores Stores, logger zerolog.Logger) *CategoryHandler {
	return &CategoryHandler{
		base:       newBase(importer.EntityCategories, categoryFields, categoryExamples, logger),
		tenants:    stores.Tenants,
		categories: stores.Categories,
		products:   stores.Products,
	}
}

func (h *CategoryHandler) ValidateRow(ctx context.Context, row importer.MappedRow, ictx importer.Context) (importer.ValidatedRow, error) {
	vr := importer.ValidateFields(h.defs, row)
	if vr.Status == importer.RowSkipped {
		return vr, nil
	}
	name := vr.String("name")
	if parent := vr.String("parentName"); parent != "" && strings.EqualFold(parent, name) {
		vr.AddError("parentName", "category cannot be its own parent")
	}

	if newName := vr.String("newName"); newName != "" && name != "" {
		current, err := h.categories.FindByName(ctx, ictx.TenantID, name)
		if err != nil {
			return vr, errors.Wrap(err, "find category")
		}
		switch {
		case current == nil:
			vr.AddError("name", fmt.Sprintf("category %q not found, cannot rename", name))
		case strings.EqualFold(newName, name):
			vr.AddWarning("newName", "new name is the same as the current name")
		default:
			clash, err := h.categories.FindByName(ctx, ictx.TenantID, newName)
			if err != nil {
				return vr, errors.Wrap(err, "find category")
			}
			if clash != nil {
				vr.AddError("newName", fmt.Sprintf("category %q already exists", newName))
			}
			vr.ExistingRecordID = current.ID
		}
	} else if name != "" && ictx.Options.UpdateExisting {
		existing, err := h.categories.FindByName(ctx, ictx.TenantID, name)
		if err != nil {
			return vr, errors.Wrap(err, "find category")
		}
		if existing != nil {
			vr.ExistingRecordID = existing.ID
		}
	}
	vr.Finalize()
	return vr, nil
}

func (h *CategoryHandler) PreValidateBatch(ctx context.Context, rows []importer.MappedRow, ictx importer.Context) (importer.PreValidation, error) {
	pv := importer.PreValidation{CanProceed: true}
	if err := requireTenant(ctx, h.tenants, ictx.TenantID, &pv); err != nil {
		return pv, err
	}
	addDuplicates(&pv, rows, "name", "category")
	return pv, nil
}

func (h *CategoryHandler) ExecuteBatch(ctx context.Context, rows []importer.ValidatedRow, ictx importer.Context) (importer.BatchResult, error) {
	var res importer.BatchResult
	err := importer.ExecuteRows(ctx, rows, ictx, &res, func(row importer.ValidatedRow) {
		name := row.String("name")
		existing, err := h.categories.FindByName(ctx, ictx.TenantID, name)
		if err != nil {
			h.storeFailure(&res, row, "name", "look up category", err)
			return
		}

		if newName := row.String("newName"); newName != "" {
			if existing == nil {
				res.Fail(row, "name", fmt.Sprintf("category %q not found, cannot rename", name))
				return
			}
			if strings.EqualFold(newName, existing.Name) {
				res.Skipped++
				return
			}
			if err := h.rename(ctx, ictx.TenantID, existing, newName); err != nil {
				h.storeFailure(&res, row, "newName", "rename category", err)
				return
			}
			res.Snapshot(models.UpdateSnapshot{
				RecordID:       existing.ID,
				Kind:           SnapshotRename,
				PreviousValues: map[string]interface{}{"name": existing.Name, "renamedTo": newName},
			})
			res.Updated++
			return
		}

		if existing != nil {
			if !ictx.Options.UpdateExisting {
				res.Skip(row, "name", fmt.Sprintf("category %q already exists", name))
				return
			}
			current := existing.Values()
			delete(current, "name")
			next, previous := importer.Changes(row, current)
			if len(next) == 0 {
				res.Skipped++
				return
			}
			if err := h.categories.Update(ctx, ictx.TenantID, existing.ID, next); err != nil {
				h.storeFailure(&res, row, "", "update category", err)
				return
			}
			res.Snapshot(models.UpdateSnapshot{RecordID: existing.ID, PreviousValues: previous})
			res.Updated++
			return
		}

		active, ok := row.Bool("isActive")
		if !ok {
			active = true
		}
		c := &models.Category{
			TenantID:    ictx.TenantID,
			Name:        name,
			Description: row.String("description"),
			ParentName:  row.String("parentName"),
			IsActive:    active,
			ImportJobID: ictx.ImportJobID,
		}
		if err := h.categories.Create(ctx, c); err != nil {
			h.storeFailure(&res, row, "name", "create category", err)
			return
		}
		res.Created++
	})
	return res, err
}

func (h *CategoryHandler) rename(ctx context.Context, tenantID string, c *models.Category, to string) error {
	from := c.Name
	if err := h.categories.Update(ctx, tenantID, c.ID, map[string]interface{}{"name": to}); err != nil {
		return err
	}
	moved, err := h.products.RenameCategory(ctx, tenantID, from, to)
	if err != nil {
		return errors.Wrap(err, "rewrite product categories")
	}
	if _, err := h.categories.RenameParent(ctx, tenantID, from, to); err != nil {
		return errors.Wrap(err, "rewrite child categories")
	}
	h.logger.Info().Str("from", from).Str("to", to).Int("products", moved).Msg("category renamed")
	return nil
}

func (h *CategoryHandler) Rollback(ctx context.Context, importJobID, tenantID string) (importer.RollbackResult, error) {
	n, err := h.categories.DeleteByImportJob(ctx, tenantID, importJobID)
	if err != nil {
		return importer.RollbackResult{}, errors.Wrap(err, "delete imported categories")
	}
	return importer.RollbackResult{Deleted: n}, nil
}

// RestoreSnapshot reverses a rename, including the product rewrite, or restores plain fields.
func (h *CategoryHandler) RestoreSnapshot(ctx context.Context, tenantID string, s models.UpdateSnapshot) error {
	if s.Kind != SnapshotRename {
		return errors.Wrapf(h.categories.Update(ctx, tenantID, s.RecordID, s.PreviousValues), "restore category %s", s.RecordID)
	}
	c, err := h.categories.Get(ctx, tenantID, s.RecordID)
	if err != nil {
		return errors.Wrapf(err, "load category %s", s.RecordID)
	}
	if c == nil {
		return nil
	}
	old, _ := s.PreviousValues["name"].(string)
	if old == "" || old == c.Name {
		return nil
	}
	return errors.Wrapf(h.rename(ctx, tenantID, c, old), "undo rename of category %s", s.RecordID)
}
