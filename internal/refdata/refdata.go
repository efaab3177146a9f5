// Package refdata loads the species reference table and resolves enrichment
// data for detected species labels. The table is read once at startup and is
// immutable afterwards, so lookups are safe for concurrent use.
package refdata

import (
	"encoding/csv"
	"maps"
	"os"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// candidateNameColumns is the ordered list of column names tried when
// locating the species-name column. The first column present in the table
// wins.
var candidateNameColumns = []string{
	"species_type", "species", "common_name", "name", "animal", "class",
}

// fieldRenames maps reference-table column names to the field names used by
// the rest of the service.
var fieldRenames = map[string]string{
	"animal_type":          "species",
	"estimated_population": "population",
	"care_instructions":    "care_general",
	"injured_care":         "care_injured",
	"malnourished_care":    "care_malnourished",
	"traits":               "character_traits",
}

const (
	cacheExpiration = 12 * time.Hour
	cacheCleanup    = 1 * time.Hour
)

// Table is a loaded species reference table.
type Table struct {
	nameColumn string
	rows       map[string]map[string]string // lowercased species name -> fields
	cache      *gocache.Cache
}

// Load reads a reference CSV from path. The first row is treated as the
// header. Returns an error only for unreadable or structurally invalid
// files; an empty table is valid.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return newTable("", nil), nil
	}

	header := make([]string, len(records[0]))
	for i, col := range records[0] {
		header[i] = strings.ToLower(strings.TrimSpace(col))
	}

	nameColumn := ""
	for _, candidate := range candidateNameColumns {
		for _, col := range header {
			if col == candidate {
				nameColumn = candidate
				break
			}
		}
		if nameColumn != "" {
			break
		}
	}

	rows := make(map[string]map[string]string, len(records)-1)
	if nameColumn != "" {
		for _, record := range records[1:] {
			fields := make(map[string]string, len(header))
			for i, col := range header {
				if i < len(record) {
					fields[col] = strings.TrimSpace(record[i])
				}
			}
			name := strings.ToLower(fields[nameColumn])
			if name == "" {
				continue
			}
			// First row wins on duplicate species names.
			if _, exists := rows[name]; !exists {
				rows[name] = fields
			}
		}
	}

	return newTable(nameColumn, rows), nil
}

func newTable(nameColumn string, rows map[string]map[string]string) *Table {
	return &Table{
		nameColumn: nameColumn,
		rows:       rows,
		cache:      gocache.New(cacheExpiration, cacheCleanup),
	}
}

// Lookup resolves enrichment fields for a species label. Matching is
// case-insensitive and exact. Returns nil when no table is loaded or no row
// matches; it never returns an error to the caller. Each call returns a
// fresh map, so callers may mutate the result freely.
func (t *Table) Lookup(speciesLabel string) map[string]string {
	if t == nil || t.nameColumn == "" || speciesLabel == "" {
		return nil
	}

	key := strings.ToLower(strings.TrimSpace(speciesLabel))
	if cached, found := t.cache.Get(key); found {
		if cached == nil {
			return nil
		}
		return maps.Clone(cached.(map[string]string))
	}

	row, ok := t.rows[key]
	if !ok {
		t.cache.Set(key, nil, gocache.DefaultExpiration)
		return nil
	}

	result := make(map[string]string, len(row))
	for col, value := range row {
		if isMissing(value) {
			continue
		}
		field := col
		if renamed, ok := fieldRenames[col]; ok {
			field = renamed
		}
		result[field] = value
	}

	t.cache.Set(key, result, gocache.DefaultExpiration)
	return maps.Clone(result)
}

// IsEndangered reports whether the reference table marks the species as
// endangered, either through an explicit endangered column or through its
// conservation status.
func (t *Table) IsEndangered(speciesLabel string) bool {
	data := t.Lookup(speciesLabel)
	if data == nil {
		return false
	}
	switch strings.ToLower(data["endangered"]) {
	case "true", "yes", "1":
		return true
	}
	status := strings.ToLower(data["conservation_status"])
	return strings.Contains(status, "endangered") || strings.Contains(status, "critically")
}

// isMissing reports whether a reference value should be stripped from
// lookup results. The source datasets use empty cells and NaN markers
// interchangeably.
func isMissing(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "nan", "null", "n/a":
		return true
	}
	return false
}
