package codec

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/wippyai/luabind/errors"
	"github.com/wippyai/luabind/stack"
)

// WString is a UTF-16 wide string.
type WString []uint16

// Wide converts a Go string to a WString.
func Wide(s string) WString {
	return utf16.Encode([]rune(s))
}

func (w WString) String() string {
	return string(utf16.Decode(w))
}

// LookupEncoding resolves a WHATWG encoding label such as "gbk",
// "shift_jis" or "windows-1252". UTF-8 labels resolve to a nil encoding.
func LookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "unknown encoding "+name)
	}
	if canonical, _ := htmlindex.Name(enc); canonical == "utf-8" {
		return nil, nil
	}
	return enc, nil
}

// PushWide transcodes w through the handle's encoding and pushes the bytes.
// On failure it pushes an empty string and returns false.
func PushWide(h *stack.Handle, w WString) bool {
	b, err := encodeWide(h, w)
	if err != nil {
		name, _ := h.Encoding()
		h.Logger().Debug("wide string encode failed", zap.String("encoding", name), zap.Error(err))
		PushString(h, "")
		return false
	}
	PushString(h, b)
	return true
}

// ReadWide reads a string slot and transcodes it back to UTF-16.
func ReadWide(h *stack.Handle, idx int) (WString, bool) {
	s, ok := ReadString(h, idx)
	if !ok {
		return nil, false
	}
	w, err := decodeWide(h, s)
	if err != nil {
		name, _ := h.Encoding()
		h.Logger().Debug("wide string decode failed", zap.String("encoding", name), zap.Error(err))
		return nil, false
	}
	return w, true
}

func encodeWide(h *stack.Handle, w WString) (string, error) {
	name, enc := h.Encoding()
	runes, err := decodeUTF16(w)
	if err != nil {
		return "", err
	}
	s := string(runes)
	if enc == nil {
		return s, nil
	}
	out, err := enc.NewEncoder().String(s)
	if err != nil {
		return "", errors.Encoding(errors.PhaseEncode, name, err)
	}
	return out, nil
}

func decodeWide(h *stack.Handle, s string) (WString, error) {
	name, enc := h.Encoding()
	if enc != nil {
		out, err := enc.NewDecoder().String(s)
		if err != nil {
			return nil, errors.Encoding(errors.PhaseDecode, name, err)
		}
		s = out
	}
	if !utf8.ValidString(s) {
		return nil, errors.New(errors.PhaseDecode, errors.KindEncoding).
			Detail("invalid UTF-8 in %s string", name).
			Build()
	}
	return Wide(s), nil
}

// decodeUTF16 rejects unpaired surrogates instead of replacing them.
func decodeUTF16(w WString) ([]rune, error) {
	runes := make([]rune, 0, len(w))
	for i := 0; i < len(w); i++ {
		c := rune(w[i])
		switch {
		case !utf16.IsSurrogate(c):
			runes = append(runes, c)
		case c < 0xDC00 && i+1 < len(w):
			r := utf16.DecodeRune(c, rune(w[i+1]))
			if r == utf8.RuneError {
				return nil, unpaired(i)
			}
			runes = append(runes, r)
			i++
		default:
			return nil, unpaired(i)
		}
	}
	return runes, nil
}

func unpaired(at int) error {
	return errors.New(errors.PhaseEncode, errors.KindEncoding).
		Detail("unpaired surrogate at index %d", at).
		Value(at).
		Build()
}
