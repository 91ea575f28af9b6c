package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"occupancy/pkg/domain"
)

// Execer is the subset of *sql.Tx used to apply changes.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Apply writes changes in order. Unique violations surface as domain conflicts.
func Apply(ctx context.Context, tx Execer, d Dialect, changes []domain.Change) error {
	for i, change := range changes {
		query, args, err := statementFor(d, change)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, d.Rebind(query), args...); err != nil {
			if mapped := d.MapError(err); mapped != err {
				return mapped
			}
			return fmt.Errorf("apply change %d (%s %s %s): %w", i, change.Action, change.Entity, change.EntityID(), err)
		}
	}
	return nil
}

// Commit applies changes inside a fresh database transaction. Once started the
// write is not abandoned when the caller's context is cancelled; values carried
// by ctx still flow through.
func Commit(ctx context.Context, db *sql.DB, d Dialect, changes []domain.Change) (retErr error) {
	ctx = context.WithoutCancel(ctx)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s tx: %w", d.Name, err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if err := Apply(ctx, tx, d, changes); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s tx: %w", d.Name, d.MapError(err))
	}
	return nil
}

func statementFor(d Dialect, change domain.Change) (string, []any, error) {
	switch change.Action {
	case domain.ActionCreate:
		return insertFor(d, change.After)
	case domain.ActionUpdate:
		return updateFor(d, change.After)
	case domain.ActionDelete:
		table, err := tableFor(change.Entity)
		if err != nil {
			return "", nil, err
		}
		return "DELETE FROM " + table + " WHERE id = ?", []any{change.EntityID()}, nil
	default:
		return "", nil, fmt.Errorf("unsupported change action %q", change.Action)
	}
}

func tableFor(entity domain.EntityType) (string, error) {
	switch entity {
	case domain.EntityBlock:
		return "blocks", nil
	case domain.EntityEntry:
		return "entries", nil
	case domain.EntityUnit:
		return "units", nil
	case domain.EntityPerson:
		return "persons", nil
	case domain.EntityLink:
		return "links", nil
	case domain.EntityVehicle:
		return "vehicles", nil
	default:
		return "", fmt.Errorf("unsupported entity %q", entity)
	}
}

func insertFor(d Dialect, rec any) (string, []any, error) {
	switch r := rec.(type) {
	case domain.Block:
		return `INSERT INTO blocks (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			[]any{r.ID, r.Name, d.timeArg(r.CreatedAt), d.timeArg(r.UpdatedAt)}, nil
	case domain.Entry:
		return `INSERT INTO entries (id, letter, block_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			[]any{r.ID, r.Letter, r.BlockID, d.timeArg(r.CreatedAt), d.timeArg(r.UpdatedAt)}, nil
	case domain.Unit:
		return `INSERT INTO units (id, apartment_number, entry_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			[]any{r.ID, r.ApartmentNumber, r.EntryID, d.timeArg(r.CreatedAt), d.timeArg(r.UpdatedAt)}, nil
	case domain.Person:
		return `INSERT INTO persons (id, full_name, primary_id, alt_id, email, phone, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			[]any{r.ID, r.FullName, nullString(r.PrimaryID), nullString(r.AltID), r.Email, r.Phone, d.timeArg(r.CreatedAt), d.timeArg(r.UpdatedAt)}, nil
	case domain.Link:
		return `INSERT INTO links (id, person_id, unit_id, category, start_date, end_date, status, note, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			[]any{r.ID, r.PersonID, r.UnitID, string(r.Category), d.timeArg(r.StartDate), d.nullTimeArg(r.EndDate), string(r.Status), r.Note, d.timeArg(r.CreatedAt), d.timeArg(r.UpdatedAt)}, nil
	case domain.Vehicle:
		return `INSERT INTO vehicles (id, person_id, plate, model, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{r.ID, r.PersonID, r.Plate, r.Model, d.timeArg(r.CreatedAt), d.timeArg(r.UpdatedAt)}, nil
	default:
		return "", nil, fmt.Errorf("unsupported insert record %T", rec)
	}
}

func updateFor(d Dialect, rec any) (string, []any, error) {
	switch r := rec.(type) {
	case domain.Person:
		return `UPDATE persons SET full_name = ?, primary_id = ?, alt_id = ?, email = ?, phone = ?, updated_at = ? WHERE id = ?`,
			[]any{r.FullName, nullString(r.PrimaryID), nullString(r.AltID), r.Email, r.Phone, d.timeArg(r.UpdatedAt), r.ID}, nil
	case domain.Link:
		return `UPDATE links SET category = ?, start_date = ?, end_date = ?, status = ?, note = ?, updated_at = ? WHERE id = ?`,
			[]any{string(r.Category), d.timeArg(r.StartDate), d.nullTimeArg(r.EndDate), string(r.Status), r.Note, d.timeArg(r.UpdatedAt), r.ID}, nil
	default:
		return "", nil, fmt.Errorf("unsupported update record %T", rec)
	}
}
