package form

import "strings"

// Tags is the value of a tags field: trimmed, non-empty and unique, in insertion order.
type Tags []string

// TagsOf reads a tags value as submitted or stored.
func TagsOf(v any) Tags {
	var t Tags
	for _, s := range toStrings(v) {
		t = t.Add(s)
	}
	return t
}

// Add appends tag unless it is blank or already present.
func (t Tags) Add(tag string) Tags {
	tag = strings.TrimSpace(tag)
	if tag == "" || t.Has(tag) {
		return t
	}
	return append(t, tag)
}

// Remove drops tag.
func (t Tags) Remove(tag string) Tags {
	out := make(Tags, 0, len(t))
	for _, s := range t {
		if s != tag {
			out = append(out, s)
		}
	}
	return out
}

// Has reports whether tag is present.
func (t Tags) Has(tag string) bool {
	for _, s := range t {
		if s == tag {
			return true
		}
	}
	return false
}

// OnKey handles a key press in the tag input. Enter commits input as a tag; the second result
// reports whether the key was consumed, in which case the input should be cleared.
func (t Tags) OnKey(key, input string) (Tags, bool) {
	if key != "Enter" {
		return t, false
	}
	return t.Add(input), true
}
