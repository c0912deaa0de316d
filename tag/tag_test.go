package tag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTags() []Tag {
	return []Tag{
		New(0x0000, 0x0000),
		New(0x0008, 0x0016),
		New(0x0008, 0x0018),
		New(0x0009, 0x0010),
		New(0x0009, 0x1010),
		NewPrivate(0x0009, 0x1010, "ACME 1.0"),
		NewPrivate(0x0009, 0x1010, "ZETA"),
		New(0x0010, 0x0010),
		New(0x7FE0, 0x0010),
		New(0xFFFE, 0xE000),
		New(0xFFFF, 0xFFFF),
	}
}

func TestCardRoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 0x00100010, 0x7FE00010, 0xFFFEE0DD, 0xFFFFFFFF} {
		tg := FromCard(v)
		assert.Equal(t, v, tg.Card())
		assert.Equal(t, uint16(v>>16), tg.Group)
		assert.Equal(t, uint16(v), tg.Element)
	}
}

func TestOrderingIsTotal(t *testing.T) {
	tags := sampleTags()
	for _, a := range tags {
		for _, b := range tags {
			n := 0
			if a.Less(b) {
				n++
			}
			if a.Equal(b) {
				n++
			}
			if a.Greater(b) {
				n++
			}
			assert.Equal(t, 1, n, "%v vs %v", a, b)
			assert.Equal(t, -a.Compare(b), b.Compare(a))
			assert.Equal(t, a.LessOrEqual(b), a.Less(b) || a.Equal(b))
			assert.Equal(t, a.GreaterOrEqual(b), a.Greater(b) || a.Equal(b))
			for _, c := range tags {
				if a.Less(b) && b.Less(c) {
					assert.True(t, a.Less(c), "%v < %v < %v", a, b, c)
				}
			}
		}
	}
}

func TestOrderingGroupMajor(t *testing.T) {
	assert.True(t, New(0x0008, 0xFFFF).Less(New(0x0010, 0x0000)))
	assert.True(t, New(0x0010, 0x0010).Less(New(0x0010, 0x0020)))
	assert.False(t, New(0x0010, 0x0020).Less(New(0x0010, 0x0020)))
}

func TestParseRoundTrip(t *testing.T) {
	for _, tg := range sampleTags() {
		parsed, err := Parse(tg.String())
		require.NoError(t, err, tg.String())
		assert.Equal(t, tg, parsed)
	}
}

func TestParseForms(t *testing.T) {
	for _, s := range []string{"(0010,0010)", "0010,0010", "00100010", " (0010,0010) "} {
		tg, err := Parse(s)
		require.NoError(t, err, s)
		assert.Equal(t, PatientName, tg, s)
	}
	tg, err := Parse("(7fe0,0010)")
	require.NoError(t, err)
	assert.Equal(t, PixelData, tg)

	tg, err = Parse("(0029,1001:SIEMENS CSA HEADER)")
	require.NoError(t, err)
	assert.Equal(t, NewPrivate(0x0029, 0x1001, "SIEMENS CSA HEADER"), tg)
}

func TestParseMalformed(t *testing.T) {
	for _, s := range []string{"", "(0010,0010", "0010", "001000100", "(001G,0010)", "(0010,00100)", "(0010,0010:)", "hello"} {
		_, err := Parse(s)
		require.Error(t, err, s)
		assert.True(t, errors.Is(err, ErrMalformedTag), s)
	}
}

func TestPrivateCreator(t *testing.T) {
	data := New(0x0009, 0x1010)
	assert.True(t, data.IsPrivate())
	assert.False(t, data.IsPrivateCreator())
	assert.Equal(t, New(0x0009, 0x0010), data.PrivateCreatorTag())
	assert.Equal(t, New(0x0029, 0x0011), New(0x0029, 0x1155).PrivateCreatorTag())

	creator := New(0x0009, 0x0010)
	assert.True(t, creator.IsPrivateCreator())
	assert.False(t, PatientName.IsPrivate())
	assert.False(t, New(0x0009, 0x0100).IsPrivateCreator())

	withCreator := data.WithCreator("ACME")
	assert.Equal(t, "ACME", withCreator.PrivateCreator())
	assert.Equal(t, "", data.PrivateCreator())
	assert.False(t, withCreator.Equal(data))
	assert.Equal(t, data, withCreator.Untagged())
}

func TestMask(t *testing.T) {
	m, err := ParseMask("(60xx,3000)")
	require.NoError(t, err)
	assert.Equal(t, Mask{Value: 0x60003000, Mask: 0xFF00FFFF}, m)
	assert.True(t, m.IsMatch(New(0x6000, 0x3000)))
	assert.True(t, m.IsMatch(New(0x60FE, 0x3000)))
	assert.False(t, m.IsMatch(New(0x6100, 0x3000)))
	assert.False(t, m.IsMatch(New(0x6000, 0x3001)))
	assert.Equal(t, "(60xx,3000)", m.String())

	_, err = ParseMask("(60xz,3000)")
	assert.True(t, errors.Is(err, ErrMalformedTag))
}
