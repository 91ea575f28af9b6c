package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"occupancy/internal/infra/persistence/memory"
	"occupancy/pkg/domain"
)

// Queryer is the subset of *sql.DB used to load state.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Load reads every table into a snapshot suitable for memory.Store.ImportState.
func Load(ctx context.Context, db Queryer) (memory.Snapshot, error) {
	snapshot := memory.Snapshot{
		Blocks:   map[string]domain.Block{},
		Entries:  map[string]domain.Entry{},
		Units:    map[string]domain.Unit{},
		Persons:  map[string]domain.Person{},
		Links:    map[string]domain.Link{},
		Vehicles: map[string]domain.Vehicle{},
	}
	loaders := []struct {
		table string
		query string
		scan  func(*sql.Rows) error
	}{
		{"blocks", `SELECT id, name, created_at, updated_at FROM blocks`, func(rows *sql.Rows) error {
			var b domain.Block
			if err := rows.Scan(&b.ID, &b.Name, timeValue{&b.CreatedAt}, timeValue{&b.UpdatedAt}); err != nil {
				return err
			}
			snapshot.Blocks[b.ID] = b
			return nil
		}},
		{"entries", `SELECT id, letter, block_id, created_at, updated_at FROM entries`, func(rows *sql.Rows) error {
			var e domain.Entry
			if err := rows.Scan(&e.ID, &e.Letter, &e.BlockID, timeValue{&e.CreatedAt}, timeValue{&e.UpdatedAt}); err != nil {
				return err
			}
			snapshot.Entries[e.ID] = e
			return nil
		}},
		{"units", `SELECT id, apartment_number, entry_id, created_at, updated_at FROM units`, func(rows *sql.Rows) error {
			var u domain.Unit
			if err := rows.Scan(&u.ID, &u.ApartmentNumber, &u.EntryID, timeValue{&u.CreatedAt}, timeValue{&u.UpdatedAt}); err != nil {
				return err
			}
			snapshot.Units[u.ID] = u
			return nil
		}},
		{"persons", `SELECT id, full_name, primary_id, alt_id, email, phone, created_at, updated_at FROM persons`, func(rows *sql.Rows) error {
			var p domain.Person
			if err := rows.Scan(&p.ID, &p.FullName, nullableText{&p.PrimaryID}, nullableText{&p.AltID}, nullableText{&p.Email}, nullableText{&p.Phone}, timeValue{&p.CreatedAt}, timeValue{&p.UpdatedAt}); err != nil {
				return err
			}
			snapshot.Persons[p.ID] = p
			return nil
		}},
		{"links", `SELECT id, person_id, unit_id, category, start_date, end_date, status, note, created_at, updated_at FROM links`, func(rows *sql.Rows) error {
			var l domain.Link
			var category, status string
			if err := rows.Scan(&l.ID, &l.PersonID, &l.UnitID, &category, timeValue{&l.StartDate}, nullTimeValue{&l.EndDate}, &status, nullableText{&l.Note}, timeValue{&l.CreatedAt}, timeValue{&l.UpdatedAt}); err != nil {
				return err
			}
			l.Category = domain.Category(category)
			l.Status = domain.LinkStatus(status)
			snapshot.Links[l.ID] = l
			return nil
		}},
		{"vehicles", `SELECT id, person_id, plate, model, created_at, updated_at FROM vehicles`, func(rows *sql.Rows) error {
			var v domain.Vehicle
			if err := rows.Scan(&v.ID, &v.PersonID, &v.Plate, nullableText{&v.Model}, timeValue{&v.CreatedAt}, timeValue{&v.UpdatedAt}); err != nil {
				return err
			}
			snapshot.Vehicles[v.ID] = v
			return nil
		}},
	}
	for _, l := range loaders {
		if err := loadTable(ctx, db, l.query, l.scan); err != nil {
			return memory.Snapshot{}, fmt.Errorf("load %s: %w", l.table, err)
		}
	}
	return snapshot, nil
}

func loadTable(ctx context.Context, db Queryer, query string, scan func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
