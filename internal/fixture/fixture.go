// Package fixture loads seed records from YAML files.
//
//	records:
//	  - entity: Task
//	    id: t1
//	    fields:
//	      title: write spec
//	      priority: 3
package fixture

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/coldfetch/internal/fetch"
	"github.com/roach88/coldfetch/internal/ir"
)

// File is the YAML layout of a fixture file.
type File struct {
	Records []Entry `yaml:"records"`
}

// Entry is one record in a fixture file.
type Entry struct {
	Entity string         `yaml:"entity"`
	ID     string         `yaml:"id"`
	Fields map[string]any `yaml:"fields"`
}

// Load reads and converts a fixture file.
func Load(path string) ([]ir.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	return Decode(bytes.NewReader(data))
}

// Decode parses fixture YAML from r. Unknown keys are rejected.
func Decode(r io.Reader) ([]ir.Record, error) {
	var file File
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		if err == io.EOF {
			return []ir.Record{}, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return file.ToRecords()
}

// ToRecords validates the entries and converts them to records.
func (f File) ToRecords() ([]ir.Record, error) {
	records := make([]ir.Record, 0, len(f.Records))
	seen := make(map[string]int, len(f.Records))

	for i, e := range f.Records {
		if !fetch.ValidIdent(e.Entity) {
			return nil, fmt.Errorf("records[%d]: invalid entity %q", i, e.Entity)
		}
		if e.ID == "" {
			return nil, fmt.Errorf("records[%d]: id is required", i)
		}
		key := e.Entity + "/" + e.ID
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("records[%d]: duplicate record %s (first at records[%d])", i, key, prev)
		}
		seen[key] = i

		fields, err := ir.ObjectFromMap(e.Fields)
		if err != nil {
			return nil, fmt.Errorf("records[%d] (%s): %w", i, key, err)
		}
		records = append(records, ir.Record{ID: e.ID, Entity: e.Entity, Fields: fields})
	}
	return records, nil
}
