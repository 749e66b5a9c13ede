package codegen

// ToIsing converts a 0/1-valued BQM into the equivalent ±1-valued Ising
// model via the standard substitution x = (s+1)/2, for spec.md §6's
// `ising.json` artifact. Every linear bias splits between the new offset
// and the spin's field; every quadratic bias splits between the offset,
// both endpoints' fields, and the coupling itself.
func (b *BQM) ToIsing() (offset float64, h map[string]float64, j map[QuadKey]float64) {
	h = make(map[string]float64, len(b.Linear))
	j = make(map[QuadKey]float64, len(b.Quadratic))
	offset = b.Offset

	for v, c := range b.Linear {
		h[v] += c / 2
		offset += c / 2
	}
	for k, c := range b.Quadratic {
		j[k] += c / 4
		h[k.U] += c / 4
		h[k.V] += c / 4
		offset += c / 4
	}
	return offset, h, j
}
