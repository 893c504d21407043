package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatInvoiceNumber(t *testing.T) {
	at := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)

	got, err := FormatInvoiceNumber(DefaultInvoiceNumberTemplate, at, 42)
	require.NoError(t, err)
	assert.Equal(t, "PWN-20240307-000042", got)

	got, err = FormatInvoiceNumber("{YY}/{SEQ}", at, 7)
	require.NoError(t, err)
	assert.Equal(t, "24/7", got)

	_, err = FormatInvoiceNumber("", at, 1)
	assert.Error(t, err)
	_, err = FormatInvoiceNumber(DefaultInvoiceNumberTemplate, at, 0)
	assert.Error(t, err)
	_, err = FormatInvoiceNumber("PWN-{BRANCH}-{SEQ}", at, 1)
	assert.Error(t, err)
}

func TestSequenceSuffix(t *testing.T) {
	v, ok := SequenceSuffix("PWN-20240307-000042")
	require.True(t, ok)
	assert.EqualValues(t, 42, v)

	_, ok = SequenceSuffix("PWN-")
	assert.False(t, ok)
}
