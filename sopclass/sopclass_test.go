package sopclass_test

import (
	"testing"

	"github.com/giesekow/go-dcmnet/sopclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, uid := range sopclass.UIDs(sopclass.VerificationClasses, sopclass.StorageClasses,
		sopclass.QRFindClasses, sopclass.QRMoveClasses, sopclass.QRGetClasses) {
		assert.False(t, seen[uid], uid)
		seen[uid] = true
	}
}

func TestLookup(t *testing.T) {
	c, ok := sopclass.Lookup("1.2.840.10008.1.1")
	require.True(t, ok)
	assert.Equal(t, "VerificationSOPClass", c.Name)

	c, ok = sopclass.Lookup("1.2.840.10008.5.1.4.1.1.2")
	require.True(t, ok)
	assert.Equal(t, "CTImageStorage", c.Name)

	_, ok = sopclass.Lookup("1.2.3.4")
	assert.False(t, ok)
}

func TestIsStorage(t *testing.T) {
	assert.True(t, sopclass.IsStorage("1.2.840.10008.5.1.4.1.1.4"))
	assert.False(t, sopclass.IsStorage("1.2.840.10008.1.1"))
	assert.False(t, sopclass.IsStorage("1.2.840.10008.5.1.4.1.2.2.1"))
}
