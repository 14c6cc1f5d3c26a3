package pipeline

import "encoding/json"

// Param is one protocol parameter value: a single string or an ordered list
// of strings. The zero value means absent.
type Param struct {
	values []string
	multi  bool
}

// StringParam wraps a single string value.
func StringParam(v string) Param {
	return Param{values: []string{v}}
}

// ListParam wraps an ordered list of string values.
func ListParam(vs ...string) Param {
	values := make([]string, len(vs))
	copy(values, vs)
	return Param{values: values, multi: true}
}

// IsZero reports whether the parameter is absent.
func (p Param) IsZero() bool {
	return !p.multi && len(p.values) == 0
}

// String returns the single value, or the first list element. Absent
// parameters return "".
func (p Param) String() string {
	if len(p.values) == 0 {
		return ""
	}
	return p.values[0]
}

// List returns the parameter values as a slice. Single values come back as
// a one-element slice; the result is a copy.
func (p Param) List() []string {
	out := make([]string, len(p.values))
	copy(out, p.values)
	return out
}

// MarshalJSON emits a bare string for single values and a JSON array for
// list values.
func (p Param) MarshalJSON() ([]byte, error) {
	if p.multi {
		return json.Marshal(p.values)
	}
	return json.Marshal(p.String())
}

// Params maps parameter names to values. Names are case-sensitive.
type Params map[string]Param

// Get returns the named parameter, or the zero Param when absent.
func (ps Params) Get(name string) Param {
	return ps[name]
}

// Set stores a parameter, last writer wins.
func (ps Params) Set(name string, p Param) {
	ps[name] = p
}

// Clone returns a shallow copy of the parameter map.
func (ps Params) Clone() Params {
	out := make(Params, len(ps))
	for k, v := range ps {
		out[k] = v
	}
	return out
}
