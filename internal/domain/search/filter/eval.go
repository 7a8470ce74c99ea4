package filter

// FieldView is read access to one item's filterable attributes.
// A missing key means the attribute is not filterable, and any condition
// on it fails.
type FieldView interface {
	Tag(key string) (string, bool)
	Numeric(key string) (float64, bool)
}

// Matches evaluates the expression against a single item. The empty
// expression matches everything.
func (e Expression) Matches(v FieldView) bool {
	for _, c := range e.must {
		if !c.matches(v) {
			return false
		}
	}
	return true
}

func (c Condition) matches(v FieldView) bool {
	if c.IsMatch() {
		val, ok := v.Tag(c.key)
		return ok && val == c.match
	}
	if c.IsRange() {
		val, ok := v.Numeric(c.key)
		if !ok {
			return false
		}
		r := c.rangeExpr
		if r.gte != nil && val < *r.gte {
			return false
		}
		if r.lte != nil && val > *r.lte {
			return false
		}
		return true
	}
	return false
}
