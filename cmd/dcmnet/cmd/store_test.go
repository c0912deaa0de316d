package cmd

import (
	"testing"

	"github.com/giesekow/go-dcmnet/dataset"
	"github.com/giesekow/go-dcmnet/dcmfile"
	"github.com/giesekow/go-dcmnet/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFile(t *testing.T, sopClassUID, tsUID string) *dcmfile.File {
	t.Helper()
	ds := dataset.New(
		dataset.MustNewElement(tag.SOPClassUID, dataset.UI, sopClassUID),
		dataset.MustNewElement(tag.SOPInstanceUID, dataset.UI, dcmfile.NewUID()),
	)
	f, err := dcmfile.New(ds, tsUID)
	require.NoError(t, err)
	return f
}

func TestStorageContexts(t *testing.T) {
	const (
		ct     = "1.2.840.10008.5.1.4.1.1.2"
		mr     = "1.2.840.10008.5.1.4.1.1.4"
		jpegTS = "1.2.840.10008.1.2.4.50"
		implTS = "1.2.840.10008.1.2"
		explTS = "1.2.840.10008.1.2.1"
		explBE = "1.2.840.10008.1.2.2"
	)
	contexts := storageContexts([]*dcmfile.File{
		testFile(t, ct, implTS),
		testFile(t, mr, jpegTS),
		testFile(t, ct, explTS),
		testFile(t, mr, jpegTS),
	})
	require.Len(t, contexts, 2)
	assert.Equal(t, ct, contexts[0].AbstractSyntaxUID)
	assert.Equal(t, []string{implTS, explTS, explBE}, contexts[0].TransferSyntaxUIDs)
	assert.Equal(t, mr, contexts[1].AbstractSyntaxUID)
	assert.Equal(t, []string{jpegTS}, contexts[1].TransferSyntaxUIDs)
}
