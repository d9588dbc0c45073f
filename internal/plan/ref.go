package plan

import "strings"

// Ref is an item reference: a concrete name or a #TAG.
type Ref struct {
	Name string
	Tag  bool
}

func ParseRef(s string) Ref {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		return Ref{Name: strings.TrimPrefix(s, "#"), Tag: true}
	}
	return Ref{Name: s}
}

func (r Ref) String() string {
	if r.Tag {
		return "#" + r.Name
	}
	return r.Name
}
