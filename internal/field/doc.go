// Package field describes the typed, named columns of cached records.
//
// A Field is a pure value: a name, one of a fixed set of logical types and
// an optional original (upstream) name. Fields compare and sort by name
// only. The Type carries the coercion hooks between Go values and the
// representations the document store can hold natively:
//
//	GUID      uuid.UUID  <-> lowercase canonical text
//	DATETIME  time.Time  <-> fixed-width UTC text (see TimeLayout)
//	BOOLEAN   bool       <-> integer 0/1
//	SHORT     int16      <-> integer
//	LONG      int64      <-> integer
//	DOUBLE    float64    <-> real
//	STRING    string     <-> text
//	BINARY    []byte     <-> blob
package field
