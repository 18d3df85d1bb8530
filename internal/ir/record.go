package ir

// Record is one domain object read from a store: its identity, the
// collection it belongs to and its field values.
type Record struct {
	ID     string `json:"id"`
	Entity string `json:"entity"`
	Fields Object `json:"fields"`
}

// Get returns the value of a field, or nil when absent. The pseudo-field
// "id" resolves to the record ID.
func (r Record) Get(field string) Value {
	if field == "id" {
		return String(r.ID)
	}
	v, ok := r.Fields[field]
	if !ok {
		return nil
	}
	return v
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	return Record{ID: r.ID, Entity: r.Entity, Fields: r.Fields.Clone()}
}

// CloneRecords deep-copies a slice of records. A nil slice stays nil.
func CloneRecords(recs []Record) []Record {
	if recs == nil {
		return nil
	}
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}
