package job

// Document is a JSON-shaped value: maps of string keys to strings, numbers,
// booleans, nil, nested Documents and slices of those.
type Document map[string]any

// Clone returns a deep copy of d. A nil Document clones to nil.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

// Merge returns a copy of d with every key of other written over it.
func (d Document) Merge(other Document) Document {
	out := d.Clone()
	if out == nil {
		out = make(Document, len(other))
	}
	for k, v := range other {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return t.Clone()
	case map[string]any:
		return Document(t).Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
