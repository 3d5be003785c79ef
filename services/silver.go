package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"realestate_ai/models"
	"realestate_ai/silver"
)

// SilverRepo reads the bronze table and replaces the silver one.
type SilverRepo interface {
	LoadAllBronze(ctx context.Context) ([]*models.BronzeListing, error)
	ReplaceSilver(ctx context.Context, table string, rows []silver.Row) error
}

// RebuildResult summarizes one silver rebuild.
type RebuildResult struct {
	BatchID    string
	Loaded     int
	Written    int
	Failed     []silver.RowError
	Collisions map[string]int
	Duration   time.Duration
}

type SilverService struct {
	store SilverRepo
	table string
}

func NewSilverService(store SilverRepo, table string) *SilverService {
	return &SilverService{store: store, table: table}
}

func (s *SilverService) Table() string {
	return s.table
}

// Rebuild flattens every bronze row and swaps the silver table in one
// transaction. Rows that fail to flatten are logged and left out.
func (s *SilverService) Rebuild(ctx context.Context) (*RebuildResult, error) {
	start := time.Now()
	res := &RebuildResult{BatchID: uuid.NewString()}

	listings, err := s.store.LoadAllBronze(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bronze: %w", err)
	}
	res.Loaded = len(listings)

	table := silver.Build(listings)
	res.Failed = table.Failed
	res.Collisions = table.Collisions

	for _, f := range table.Failed {
		log.Printf("Silver %s: skipping bronze row %d (ad %d): %v", res.BatchID, f.ID, f.AdID, f.Err)
	}
	for _, key := range sortedKeys(table.Collisions) {
		log.Printf("Silver %s: key collision %s in %d rows", res.BatchID, key, table.Collisions[key])
	}

	if err := s.store.ReplaceSilver(ctx, s.table, table.Rows); err != nil {
		return nil, fmt.Errorf("replace %s: %w", s.table, err)
	}
	res.Written = len(table.Rows)
	res.Duration = time.Since(start)

	log.Printf("Silver %s: %d/%d rows written to %s in %s",
		res.BatchID, res.Written, res.Loaded, s.table, res.Duration.Round(time.Millisecond))
	return res, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
