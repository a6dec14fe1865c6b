package model

// Range is an inclusive interval of absolute row positions, published as
// {"StartRange": s, "EndRange": e} for the downstream stage.
type Range struct {
	StartRange int64 `json:"StartRange"`
	EndRange   int64 `json:"EndRange"`
}

// Len returns the number of rows covered by the range.
func (r Range) Len() int64 {
	return r.EndRange - r.StartRange + 1
}
