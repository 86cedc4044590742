package model

// LinkKey identifies an unordered pair of radio endpoints by their
// stable, assigned identifiers. The pair is stored in canonical order
// so that (a,b) and (b,a) produce the same key, making it safe to use
// as a map key for per-pair state such as shadowing offsets.
type LinkKey struct {
	A, B string
}

// NewLinkKey canonicalises the endpoint order.
func NewLinkKey(a, b string) LinkKey {
	if b < a {
		a, b = b, a
	}
	return LinkKey{A: a, B: b}
}
