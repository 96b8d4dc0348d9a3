package types

// Record is one row of a tree-enabled table.
//
// The semantic columns are typed fields; everything else the caller stores
// lives in Data. Storage backends map the fields to the column names given
// by Options.
type Record struct {
	ID          string                 // Assigned by storage on insert
	Path        string                 // Materialized path, Depth*StepLength symbols
	Depth       int                    // 1 for roots
	ParentID    string                 // Empty for roots
	NumChildren int                    // Cached count of immediate children
	Data        map[string]interface{} // Payload, including the orderBy fields
}

// NewRecord creates an unsaved record carrying the given payload.
func NewRecord(data map[string]interface{}) *Record {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &Record{Data: data}
}

// Get returns a payload value by field name.
func (r *Record) Get(field string) (interface{}, bool) {
	if r.Data == nil {
		return nil, false
	}
	v, ok := r.Data[field]
	return v, ok
}

// Set stores a payload value by field name.
func (r *Record) Set(field string, value interface{}) {
	if r.Data == nil {
		r.Data = make(map[string]interface{})
	}
	r.Data[field] = value
}

// IsRoot reports whether the record has no parent.
func (r *Record) IsRoot() bool {
	return r.ParentID == ""
}

// Clone returns a deep copy of the record. Payload values are copied
// shallowly since they are restricted to simple types.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Data != nil {
		c.Data = make(map[string]interface{}, len(r.Data))
		for k, v := range r.Data {
			c.Data[k] = v
		}
	}
	return &c
}

// OrderTuple returns the values of the given fields, in order. Missing
// fields yield nil.
func (r *Record) OrderTuple(fields []string) []interface{} {
	tuple := make([]interface{}, len(fields))
	for i, f := range fields {
		tuple[i], _ = r.Get(f)
	}
	return tuple
}
