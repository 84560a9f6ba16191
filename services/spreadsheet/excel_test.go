package spreadsheet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRecords(t *testing.T) {
	buf, err := Write(
		[]string{"Name", "Student Number", " Gender "},
		[][]interface{}{
			{"Jane Doe", "S-001", "F"},
			{"", "", ""},
			{"John Doe", "S-002", "M"},
		},
	)
	require.NoError(t, err)

	records, err := ReadRecords(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 2, records[0].Row)
	assert.Equal(t, "Jane Doe", records[0].Get("name"))
	assert.Equal(t, "S-001", records[0].Get("student_number"))
	assert.Equal(t, "F", records[0].Get("gender"))

	// the blank row is skipped but row numbers follow the sheet
	assert.Equal(t, 4, records[1].Row)
	assert.Equal(t, "M", records[1].Get("gender"))
	assert.Equal(t, "", records[1].Get("unknown"))
}

func TestReadRecords_errors(t *testing.T) {
	_, err := ReadRecords(bytes.NewReader([]byte("not an excel file")))
	assert.Error(t, err)

	buf, err := Write(nil, nil)
	require.NoError(t, err)
	_, err = ReadRecords(bytes.NewReader(buf.Bytes()))
	assert.Equal(t, ErrNoHeader, err)
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "birth_date", NormalizeHeader("  Birth   Date "))
	assert.Equal(t, "email", NormalizeHeader("EMAIL"))
}
