package options

// Values is a free-form option mapping. Nested mappings are merged key by key.
type Values map[string]any

// Clone copies v recursively through nested mappings and slices.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = cloneValue(val)
	}
	return out
}

// Merge deep-merges src into v. When both sides hold a mapping under the same
// key the mappings are merged recursively, otherwise the value from src wins.
func (v Values) Merge(src Values) {
	for k, incoming := range src {
		if current, ok := asValues(v[k]); ok {
			if next, ok := asValues(incoming); ok {
				merged := current.Clone()
				merged.Merge(next)
				v[k] = merged
				continue
			}
		}
		v[k] = cloneValue(incoming)
	}
}

// DeepMerge returns a new mapping holding dst deep-merged with src. Neither
// argument is modified.
func DeepMerge(dst, src Values) Values {
	out := dst.Clone()
	if out == nil {
		out = Values{}
	}
	out.Merge(src)
	return out
}

func asValues(v any) (Values, bool) {
	switch m := v.(type) {
	case Values:
		return m, true
	case map[string]any:
		return Values(m), true
	default:
		return nil, false
	}
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Values:
		return val.Clone()
	case map[string]any:
		return Values(val).Clone()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}
