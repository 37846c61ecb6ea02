package queryvars

import (
	"net/url"
	"strings"
)

// Var is one query variable. A variable is either scalar or a list
// (list keys arrive as "key[]" on the wire, e.g. post_type[]).
type Var struct {
	Key    string
	Value  string
	Values []string
	IsList bool
}

// Vars is an ordered set of query variables. Insertion order is
// preserved so that reconstructed query strings are deterministic.
// Repeated scalar keys overwrite in place, keeping the original position.
type Vars struct {
	vars []Var
}

// Parse decodes a raw query string into Vars. Decoding failures on a
// single pair leave that pair out; the remaining pairs still parse.
func Parse(raw string) Vars {
	var out Vars
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "?")
	if raw == "" {
		return out
	}

	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		decodedKey, err := url.QueryUnescape(key)
		if err != nil {
			continue
		}
		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			decodedValue = value
		}

		if listKey, isList := strings.CutSuffix(decodedKey, "[]"); isList && listKey != "" {
			out.Append(listKey, decodedValue)
			continue
		}
		out.Set(decodedKey, decodedValue)
	}
	return out
}

// Get returns the scalar value for key. List variables report not-found.
func (v Vars) Get(key string) (string, bool) {
	for _, entry := range v.vars {
		if entry.Key == key {
			if entry.IsList {
				return "", false
			}
			return entry.Value, true
		}
	}
	return "", false
}

// GetList returns the values for key, treating a scalar as a one-element list.
func (v Vars) GetList(key string) ([]string, bool) {
	for _, entry := range v.vars {
		if entry.Key != key {
			continue
		}
		if entry.IsList {
			return append([]string(nil), entry.Values...), true
		}
		return []string{entry.Value}, true
	}
	return nil, false
}

// Has reports whether key is present, scalar or list.
func (v Vars) Has(key string) bool {
	for _, entry := range v.vars {
		if entry.Key == key {
			return true
		}
	}
	return false
}

// IsList reports whether key is present as a list variable.
func (v Vars) IsList(key string) bool {
	for _, entry := range v.vars {
		if entry.Key == key {
			return entry.IsList
		}
	}
	return false
}

// Set stores a scalar value for key, replacing any prior value while
// keeping the key's original position.
func (v *Vars) Set(key, value string) {
	for i := range v.vars {
		if v.vars[i].Key == key {
			v.vars[i] = Var{Key: key, Value: value}
			return
		}
	}
	v.vars = append(v.vars, Var{Key: key, Value: value})
}

// Append adds a value to a list variable, converting a scalar entry if needed.
func (v *Vars) Append(key, value string) {
	for i := range v.vars {
		if v.vars[i].Key != key {
			continue
		}
		if !v.vars[i].IsList {
			v.vars[i] = Var{Key: key, IsList: true, Values: []string{v.vars[i].Value}}
		}
		v.vars[i].Values = append(v.vars[i].Values, value)
		return
	}
	v.vars = append(v.vars, Var{Key: key, IsList: true, Values: []string{value}})
}

// Delete removes key. Removing an absent key is a no-op.
func (v *Vars) Delete(key string) {
	for i := range v.vars {
		if v.vars[i].Key == key {
			v.vars = append(v.vars[:i], v.vars[i+1:]...)
			return
		}
	}
}

// Keys returns the keys in stored order.
func (v Vars) Keys() []string {
	keys := make([]string, 0, len(v.vars))
	for _, entry := range v.vars {
		keys = append(keys, entry.Key)
	}
	return keys
}

// Len returns the number of stored variables.
func (v Vars) Len() int {
	return len(v.vars)
}

// Clone returns an independent copy.
func (v Vars) Clone() Vars {
	out := Vars{vars: make([]Var, len(v.vars))}
	copy(out.vars, v.vars)
	for i := range out.vars {
		if out.vars[i].IsList {
			out.vars[i].Values = append([]string(nil), v.vars[i].Values...)
		}
	}
	return out
}

// Encode reconstructs a query string in stored order. List variables
// are written as repeated key[] pairs.
func (v Vars) Encode() string {
	var b strings.Builder
	for _, entry := range v.vars {
		if entry.IsList {
			for _, value := range entry.Values {
				if b.Len() > 0 {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(entry.Key))
				b.WriteString("%5B%5D=")
				b.WriteString(url.QueryEscape(value))
			}
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(entry.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(entry.Value))
	}
	return b.String()
}

// SemanticallyEqual reports whether two variable sets carry the same
// keys and values regardless of order. Key order never changes meaning,
// so two requests differing only in ordering must compare equal.
func SemanticallyEqual(a, b Vars) bool {
	if len(a.vars) != len(b.vars) {
		return false
	}
	for _, entry := range a.vars {
		if entry.IsList {
			other, ok := b.GetList(entry.Key)
			if !ok || !b.IsList(entry.Key) || len(other) != len(entry.Values) {
				return false
			}
			for i, value := range entry.Values {
				if other[i] != value {
					return false
				}
			}
			continue
		}
		other, ok := b.Get(entry.Key)
		if !ok || other != entry.Value {
			return false
		}
	}
	return true
}
