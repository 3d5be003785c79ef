package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate_ai/models"
	"realestate_ai/silver"
)

func TestSilverDDL(t *testing.T) {
	ddl := silverDDL("listings_silver")

	assert.True(t, strings.HasPrefix(ddl, `CREATE TABLE "listings_silver"`), ddl)
	assert.Contains(t, ddl, `"ad_id" BIGINT`)
	assert.Contains(t, ddl, `"m" DOUBLE PRECISION`)
	assert.Contains(t, ddl, `"lift" BOOLEAN`)
	assert.Contains(t, ddl, `"created_at" TIMESTAMPTZ`)
	assert.Contains(t, ddl, `"features" JSONB`)
	assert.Contains(t, ddl, `"market" TEXT`)
}

func TestSilverInsert(t *testing.T) {
	rec := silver.Record{}
	full := silver.Transform(rec)
	full[0] = "otodom"
	for i, c := range silver.Columns {
		if c.Name == "features" {
			full[i] = []string{"balkon", "winda"}
		}
	}

	query, args, err := silverInsert("listings_silver", []silver.Row{full, silver.Transform(rec)})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(query, `INSERT INTO "listings_silver"`), query)
	assert.Contains(t, query, "$1")
	require.Len(t, args, 2*len(silver.Columns))
	assert.Equal(t, "otodom", args[0])

	idx := -1
	for i, c := range silver.Columns {
		if c.Name == "features" {
			idx = i
		}
	}
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, `["balkon","winda"]`, args[idx])
	assert.Nil(t, args[len(silver.Columns)+idx])
}

func TestSQLValue(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"int", int64(3), int64(3)},
		{"time", now, now},
		{"empty list", []string{}, "[]"},
		{"list", []string{"a"}, `["a"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sqlValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"listings_silver"`, quoteIdent("listings_silver"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
	assert.Equal(t, `"Listings_Silver"`, regclassName("Listings_Silver"))
}

func TestBronzeQuery(t *testing.T) {
	query, args := bronzeQuery(models.BronzeFilter{Source: "OTODOM", Status: "Active", Limit: 10})

	assert.True(t, strings.HasPrefix(query, "SELECT id, source, ad_id"), query)
	assert.Contains(t, query, "FROM listings_bronze")
	assert.Contains(t, query, "WHERE source = $1 AND status = $2")
	assert.Contains(t, query, "ORDER BY ingested_at DESC, id DESC")
	assert.Contains(t, query, "LIMIT")
	require.GreaterOrEqual(t, len(args), 2)
	assert.Equal(t, "otodom", args[0])
	assert.Equal(t, "active", args[1])

	query, args = bronzeQuery(models.BronzeFilter{})
	assert.NotContains(t, query, "WHERE")
	assert.NotContains(t, query, "LIMIT")
	assert.Empty(t, args)
}
