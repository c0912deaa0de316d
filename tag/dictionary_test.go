package tag

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardDictionary(t *testing.T) {
	e, ok := StandardDictionary.Lookup(PatientName)
	require.True(t, ok)
	assert.Equal(t, "PN", e.VR)
	assert.Equal(t, PatientName, e.Tag)

	e, ok = StandardDictionary.Lookup(StudyInstanceUID)
	require.True(t, ok)
	assert.Equal(t, "UI", e.VR)

	e, ok = StandardDictionary.Lookup(ReferencedImageSequence)
	require.True(t, ok)
	assert.Equal(t, "SQ", e.VR)

	e, ok = StandardDictionary.Lookup(New(0x0010, 0x0000))
	require.True(t, ok)
	assert.Equal(t, "UL", e.VR)

	_, ok = StandardDictionary.Lookup(New(0x0009, 0x1010))
	assert.False(t, ok)
}

func TestStandardDictionaryConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				e, ok := StandardDictionary.Lookup(PatientID)
				assert.True(t, ok)
				assert.Equal(t, "LO", e.VR)
			}
		}()
	}
	wg.Wait()
}

func TestMapDictionaryPrivate(t *testing.T) {
	d := NewMapDictionary(
		Entry{Tag: New(0x0010, 0x0010), VR: "PN", VM: "1", Name: "PatientName"},
		Entry{Tag: NewPrivate(0x0009, 0x0010, "ACME"), VR: "DS", VM: "1", Name: "AcmeDose"},
	)
	e, ok := d.Lookup(PatientName)
	require.True(t, ok)
	assert.Equal(t, "PN", e.VR)

	// The creator may be assigned any block in the group.
	for _, el := range []uint16{0x1010, 0x2010, 0xFF10} {
		e, ok = d.Lookup(NewPrivate(0x0009, el, "ACME"))
		require.True(t, ok, "%04x", el)
		assert.Equal(t, "DS", e.VR)
		assert.Equal(t, NewPrivate(0x0009, el, "ACME"), e.Tag)
	}
	_, ok = d.Lookup(NewPrivate(0x0009, 0x1010, "OTHER"))
	assert.False(t, ok)
	_, ok = d.Lookup(New(0x0009, 0x1010))
	assert.False(t, ok)
}

func TestChain(t *testing.T) {
	local := NewMapDictionary(Entry{Tag: PatientName, VR: "LO", Name: "Override"})
	c := Chain{local, StandardDictionary}
	e, ok := c.Lookup(PatientName)
	require.True(t, ok)
	assert.Equal(t, "LO", e.VR)
	e, ok = c.Lookup(PatientID)
	require.True(t, ok)
	assert.Equal(t, "LO", e.VR)
	_, ok = c.Lookup(New(0x0011, 0x1000))
	assert.False(t, ok)
}
