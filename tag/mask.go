package tag

import (
	"fmt"
	"strings"
)

// Mask matches a range of tags. A tag t matches iff t.Card()&Mask == Value.
// For example the overlay data tags (60xx,3000) are
// Mask{Value: 0x60003000, Mask: 0xFF00FFFF}.
type Mask struct {
	Value uint32
	Mask  uint32
}

// IsMatch reports whether t falls into the masked range.
func (m Mask) IsMatch(t Tag) bool {
	return t.Card()&m.Mask == m.Value
}

func (m Mask) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i := 7; i >= 0; i-- {
		if i == 3 {
			b.WriteByte(',')
		}
		shift := uint(i * 4)
		if (m.Mask>>shift)&0xF == 0 {
			b.WriteByte('x')
		} else {
			fmt.Fprintf(&b, "%X", (m.Value>>shift)&0xF)
		}
	}
	b.WriteByte(')')
	return b.String()
}

// ParseMask parses "(gggg,eeee)" where any hex digit may be replaced by 'x'
// to match all values of that nibble.
func ParseMask(s string) (Mask, error) {
	str := strings.TrimSpace(s)
	str = strings.TrimPrefix(str, "(")
	str = strings.TrimSuffix(str, ")")
	str = strings.Replace(str, ",", "", 1)
	if len(str) != 8 {
		return Mask{}, fmt.Errorf("tag.ParseMask %q: %w", s, ErrMalformedTag)
	}
	var m Mask
	for _, c := range str {
		m.Value <<= 4
		m.Mask <<= 4
		switch {
		case c == 'x' || c == 'X':
		case c >= '0' && c <= '9':
			m.Value |= uint32(c - '0')
			m.Mask |= 0xF
		case c >= 'a' && c <= 'f':
			m.Value |= uint32(c-'a') + 10
			m.Mask |= 0xF
		case c >= 'A' && c <= 'F':
			m.Value |= uint32(c-'A') + 10
			m.Mask |= 0xF
		default:
			return Mask{}, fmt.Errorf("tag.ParseMask %q: bad digit %q: %w", s, c, ErrMalformedTag)
		}
	}
	return m, nil
}
