package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/luabind/codec"
)

const maxDepth = 4

// formatValues renders values the way a Lua literal would read.
func formatValues(vals []lua.LValue) string {
	if len(vals) == 0 {
		return "(no values)"
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = formatValue(v, 0)
	}
	return strings.Join(parts, ", ")
}

func formatValue(v lua.LValue, depth int) string {
	switch v := v.(type) {
	case lua.LString:
		return strconv.Quote(string(v))
	case *lua.LTable:
		if depth >= maxDepth {
			return "{...}"
		}
		return formatTable(v, depth)
	case *lua.LUserData:
		if p, ok := codec.LightPointer(v); ok {
			return fmt.Sprintf("<%T %p>", p, p)
		}
		return "<userdata>"
	case *lua.LFunction:
		return "<function>"
	default:
		return v.String()
	}
}

// formatTable lists the array part first, then the remaining keys in
// sorted order.
func formatTable(t *lua.LTable, depth int) string {
	n := t.Len()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, formatValue(t.RawGetInt(i), depth+1))
	}

	var keyed []string
	t.ForEach(func(k, v lua.LValue) {
		if num, ok := k.(lua.LNumber); ok {
			if i := int(num); lua.LNumber(i) == num && i >= 1 && i <= n {
				return
			}
		}
		key := k.String()
		if _, ok := k.(lua.LString); !ok || !isIdent(key) {
			key = "[" + formatValue(k, depth+1) + "]"
		}
		keyed = append(keyed, key+" = "+formatValue(v, depth+1))
	})
	slices.Sort(keyed)

	parts = append(parts, keyed...)
	if len(parts) == 0 {
		return "{}"
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
