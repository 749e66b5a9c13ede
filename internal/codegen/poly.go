package codegen

import "sort"

// QuadKey is a canonically-ordered pair of binary variable labels.
type QuadKey struct{ U, V string }

func quadKey(u, v string) QuadKey {
	if u > v {
		u, v = v, u
	}
	return QuadKey{U: u, V: v}
}

// Poly is a polynomial of degree <= 2 over binary variables in [0,1]:
// Const + Σ Linear[x]·x + Σ Quad[(u,v)]·u·v.
type Poly struct {
	Const  float64
	Linear map[string]float64
	Quad   map[QuadKey]float64
}

func constPoly(v float64) Poly { return Poly{Const: v} }

func varPoly(label string) Poly {
	return Poly{Linear: map[string]float64{label: 1}}
}

func (p Poly) clone() Poly {
	out := Poly{Const: p.Const}
	if len(p.Linear) > 0 {
		out.Linear = make(map[string]float64, len(p.Linear))
		for k, v := range p.Linear {
			out.Linear[k] = v
		}
	}
	if len(p.Quad) > 0 {
		out.Quad = make(map[QuadKey]float64, len(p.Quad))
		for k, v := range p.Quad {
			out.Quad[k] = v
		}
	}
	return out
}

func addInto(dst *Poly, src Poly, scale float64) {
	dst.Const += src.Const * scale
	if len(src.Linear) > 0 {
		if dst.Linear == nil {
			dst.Linear = map[string]float64{}
		}
		for k, v := range src.Linear {
			dst.Linear[k] += v * scale
		}
	}
	if len(src.Quad) > 0 {
		if dst.Quad == nil {
			dst.Quad = map[QuadKey]float64{}
		}
		for k, v := range src.Quad {
			dst.Quad[k] += v * scale
		}
	}
}

func addPoly(a, b Poly) Poly {
	out := a.clone()
	addInto(&out, b, 1)
	return out
}

func subPoly(a, b Poly) Poly {
	out := a.clone()
	addInto(&out, b, -1)
	return out
}

func scalePoly(a Poly, s float64) Poly {
	out := Poly{Const: a.Const * s}
	if len(a.Linear) > 0 {
		out.Linear = make(map[string]float64, len(a.Linear))
		for k, v := range a.Linear {
			out.Linear[k] = v * s
		}
	}
	if len(a.Quad) > 0 {
		out.Quad = make(map[QuadKey]float64, len(a.Quad))
		for k, v := range a.Quad {
			out.Quad[k] = v * s
		}
	}
	return out
}

// degree returns 0, 1, or 2. Anything requiring degree 3+ is reported by
// the caller as unsupported before a Poly like that would ever exist.
func (p Poly) degree() int {
	if len(p.Quad) > 0 {
		return 2
	}
	if len(p.Linear) > 0 {
		return 1
	}
	return 0
}

// mulPoly multiplies two polynomials, returning false if the product
// would exceed degree 2.
func mulPoly(a, b Poly) (Poly, bool) {
	if a.degree()+b.degree() > 2 {
		return Poly{}, false
	}
	out := Poly{Const: a.Const * b.Const}
	// const * linear/quad
	for k, v := range a.Linear {
		addLinear(&out, k, v*b.Const)
	}
	for k, v := range b.Linear {
		addLinear(&out, k, v*a.Const)
	}
	for k, v := range a.Quad {
		addQuad(&out, k, v*b.Const)
	}
	for k, v := range b.Quad {
		addQuad(&out, k, v*a.Const)
	}
	// linear * linear -> quad
	for ka, va := range a.Linear {
		for kb, vb := range b.Linear {
			addQuad(&out, quadKey(ka, kb), va*vb)
		}
	}
	return out, true
}

func addLinear(p *Poly, k string, v float64) {
	if v == 0 {
		return
	}
	if p.Linear == nil {
		p.Linear = map[string]float64{}
	}
	p.Linear[k] += v
}

func addQuad(p *Poly, k QuadKey, v float64) {
	if v == 0 {
		return
	}
	if p.Quad == nil {
		p.Quad = map[QuadKey]float64{}
	}
	p.Quad[k] += v
}

// bigM bounds |p| over the binary hypercube, used as the big-M constant
// in indicator-constraint encodings (every var and every quadratic
// product of vars is bounded by 1).
func bigM(p Poly) float64 {
	m := abs(p.Const)
	for _, v := range p.Linear {
		m += abs(v)
	}
	for _, v := range p.Quad {
		m += abs(v)
	}
	if m < 1 {
		m = 1
	}
	return m
}

// Eval evaluates the polynomial at a 0/1 assignment, exported so callers
// outside this package (internal/runtime/local's feasibility filter) can
// re-check a decoded sample against the original CQM constraints per
// spec.md §4.12's post-processing step 1.
func (p Poly) Eval(sample map[string]int) float64 {
	v := p.Const
	for name, coeff := range p.Linear {
		v += coeff * float64(sample[name])
	}
	for k, coeff := range p.Quad {
		v += coeff * float64(sample[k.U]) * float64(sample[k.V])
	}
	return v
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// sortedLinearKeys returns Linear's keys in stable order, for
// deterministic constraint/objective emission.
func (p Poly) sortedLinearKeys() []string {
	keys := make([]string, 0, len(p.Linear))
	for k := range p.Linear {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
