package fit

func lookup(coefs []Coef, term string) (Coef, bool) {
	for _, c := range coefs {
		if c.Term == term {
			return c, true
		}
	}
	return Coef{}, false
}

// Coef returns the coefficient row for term.
func (r *OLSResult) Coef(term string) (Coef, bool) { return lookup(r.Coefficients, term) }

// Coef returns the coefficient row for term.
func (r *MixedResult) Coef(term string) (Coef, bool) { return lookup(r.Coefficients, term) }
