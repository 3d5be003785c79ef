package silver

import "realestate_ai/models"

// RowError is a bronze row that could not be flattened.
type RowError struct {
	ID   int64
	AdID int64
	Err  error
}

// Table is the result of flattening a whole bronze snapshot.
type Table struct {
	Rows   []Row
	Failed []RowError
	// Collisions counts overwritten keys across all rows.
	Collisions map[string]int
}

// Build flattens and transforms every listing. A failing row is recorded in
// Failed and does not affect the others.
func Build(listings []*models.BronzeListing) *Table {
	t := &Table{
		Rows:       make([]Row, 0, len(listings)),
		Collisions: map[string]int{},
	}
	for _, l := range listings {
		if l == nil {
			t.Failed = append(t.Failed, RowError{Err: ErrNilListing})
			continue
		}
		res, err := Extract(l)
		if err != nil {
			t.Failed = append(t.Failed, RowError{ID: l.ID, AdID: l.AdID, Err: err})
			continue
		}
		for _, c := range res.Collisions {
			t.Collisions[c.String()]++
		}
		t.Rows = append(t.Rows, Transform(res.Record))
	}
	return t
}
