package stream

import (
	"reflect"
	"strings"
	"sync"
)

type field struct {
	name  string
	index []int
}

var fieldCache sync.Map // reflect.Type -> []field

// fieldsOf lists the exported fields of a struct type with their Lua
// names, taken from the `lua` tag when present. Embedded structs are
// flattened. The result is cached per type.
func fieldsOf(t reflect.Type) []field {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]field)
	}
	fields := collectFields(t, nil)
	actual, _ := fieldCache.LoadOrStore(t, fields)
	return actual.([]field)
}

func collectFields(t reflect.Type, prefix []int) []field {
	var out []field
	for i := range t.NumField() {
		sf := t.Field(i)
		index := append(append([]int(nil), prefix...), i)

		if sf.Anonymous && sf.Type.Kind() == reflect.Struct && sf.Tag.Get("lua") == "" {
			out = append(out, collectFields(sf.Type, index)...)
			continue
		}
		if !sf.IsExported() {
			continue
		}

		name := sf.Name
		if tag, ok := sf.Tag.Lookup("lua"); ok {
			tag, _, _ = strings.Cut(tag, ",")
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		out = append(out, field{name: name, index: index})
	}
	return out
}
