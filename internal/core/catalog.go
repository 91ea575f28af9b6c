package core

import (
	"occupancy/pkg/domain"
)

// EntryNode is an entry with its units.
type EntryNode struct {
	domain.Entry
	Units []domain.Unit `json:"units"`
}

// BlockNode is a block with its entries.
type BlockNode struct {
	domain.Block
	Entries []EntryNode `json:"entries"`
}

// BootstrapSummary counts the records bootstrap created.
type BootstrapSummary struct {
	Blocks  int `json:"blocks"`
	Entries int `json:"entries"`
	Units   int `json:"units"`
}

// Catalog answers reads over the Block, Entry, Unit hierarchy and performs the
// one-time bootstrap.
type Catalog struct{}

// NewCatalog constructs a catalog.
func NewCatalog() Catalog { return Catalog{} }

// Hierarchy returns every block with its entries and units.
func (Catalog) Hierarchy(view domain.TransactionView) []BlockNode {
	blocks := view.ListBlocks()
	out := make([]BlockNode, 0, len(blocks))
	for _, b := range blocks {
		node := BlockNode{Block: b}
		for _, e := range view.ListEntriesForBlock(b.ID) {
			node.Entries = append(node.Entries, EntryNode{Entry: e, Units: view.ListUnitsForEntry(e.ID)})
		}
		out = append(out, node)
	}
	return out
}

// EntriesForBlock lists the entries of a block.
func (Catalog) EntriesForBlock(view domain.TransactionView, blockID string) ([]domain.Entry, error) {
	if _, ok := view.FindBlock(blockID); !ok {
		return nil, domain.NotFoundError{Entity: domain.EntityBlock, ID: blockID}
	}
	return view.ListEntriesForBlock(blockID), nil
}

// UnitsForEntry lists the units behind an entry.
func (Catalog) UnitsForEntry(view domain.TransactionView, entryID string) ([]domain.Unit, error) {
	if _, ok := view.FindEntry(entryID); !ok {
		return nil, domain.NotFoundError{Entity: domain.EntityEntry, ID: entryID}
	}
	return view.ListUnitsForEntry(entryID), nil
}

// Unit loads a unit.
func (Catalog) Unit(view domain.TransactionView, unitID string) (domain.Unit, error) {
	u, ok := view.FindUnit(unitID)
	if !ok {
		return domain.Unit{}, domain.NotFoundError{Entity: domain.EntityUnit, ID: unitID}
	}
	return u, nil
}

// Bootstrap creates the whole topology inside tx. It refuses to run when any
// block exists; a failure part-way leaves nothing behind once tx rolls back.
func (Catalog) Bootstrap(tx domain.Transaction, topo Topology) (BootstrapSummary, error) {
	if existing := len(tx.ListBlocks()); existing > 0 {
		return BootstrapSummary{}, domain.AlreadyInitializedError{Blocks: existing}
	}
	if err := topo.Validate(); err != nil {
		return BootstrapSummary{}, domain.ValidationError{Field: "topology", Message: err.Error()}
	}
	var sum BootstrapSummary
	for _, pb := range topo.Expand() {
		block, err := tx.CreateBlock(domain.Block{Name: pb.Name})
		if err != nil {
			return BootstrapSummary{}, err
		}
		sum.Blocks++
		for _, pe := range pb.Entries {
			entry, err := tx.CreateEntry(domain.Entry{Letter: pe.Letter, BlockID: block.ID})
			if err != nil {
				return BootstrapSummary{}, err
			}
			sum.Entries++
			for _, number := range pe.Apartments {
				if _, err := tx.CreateUnit(domain.Unit{ApartmentNumber: number, EntryID: entry.ID}); err != nil {
					return BootstrapSummary{}, err
				}
				sum.Units++
			}
		}
	}
	return sum, nil
}
