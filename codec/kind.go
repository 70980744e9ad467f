package codec

import (
	lua "github.com/yuin/gopher-lua"
)

// Kind is the runtime-side tag of a stack slot.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindTable
	KindFunction
	KindUserData
	KindLightUserData
	KindThread
	KindChannel
)

var kindNames = [...]string{
	KindNil:           "nil",
	KindBool:          "boolean",
	KindNumber:        "number",
	KindString:        "string",
	KindTable:         "table",
	KindFunction:      "function",
	KindUserData:      "userdata",
	KindLightUserData: "lightuserdata",
	KindThread:        "thread",
	KindChannel:       "channel",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsScalar reports whether values of this kind are read with a single
// codec call rather than a table walk.
func (k Kind) IsScalar() bool {
	switch k {
	case KindBool, KindNumber, KindString, KindLightUserData:
		return true
	default:
		return false
	}
}

// KindOf returns the tag of v. User data created by PushPointer reports
// KindLightUserData; every other user data reports KindUserData.
func KindOf(v lua.LValue) Kind {
	switch v.Type() {
	case lua.LTBool:
		return KindBool
	case lua.LTNumber:
		return KindNumber
	case lua.LTString:
		return KindString
	case lua.LTTable:
		return KindTable
	case lua.LTFunction:
		return KindFunction
	case lua.LTUserData:
		if isLight(v) {
			return KindLightUserData
		}
		return KindUserData
	case lua.LTThread:
		return KindThread
	case lua.LTChannel:
		return KindChannel
	default:
		return KindNil
	}
}

// TypeName returns the name of v's tag as used in error messages.
func TypeName(v lua.LValue) string {
	return KindOf(v).String()
}
