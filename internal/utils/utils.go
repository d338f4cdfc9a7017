// Package utils holds small helpers shared by the config and API layers.
package utils

import (
	"strings"

	"github.com/fatih/structs"
)

// FieldTagNames returns the names the passed fields carry in the given
// struct tag; fields without or with an ignored ("-") tag are skipped
func FieldTagNames(fields []*structs.Field, tag string) (names []string) {
	for _, f := range fields {
		if f == nil {
			continue
		}
		t := f.Tag(tag)
		if t == "" {
			continue
		}
		name, _, _ := strings.Cut(t, ",")
		if name == "" || name == "-" {
			continue
		}
		names = append(names, name)
	}
	return
}

// TagNamesOf returns the tag names of all exported fields of the struct v
func TagNamesOf(v any, tag string) []string {
	return FieldTagNames(structs.New(v).Fields(), tag)
}

// SplitList splits a comma separated list, trimming whitespace and dropping
// empty entries
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
