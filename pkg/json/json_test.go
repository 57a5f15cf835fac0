package json

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pitchline/pkg/errors"
	"github.com/ajitpratap0/pitchline/pkg/models"
)

func TestDecodeRowsKeepsFieldOrder(t *testing.T) {
	body := []byte(`[{"zeta": 1, "alpha": "a", "mid": true}, {"alpha": "b", "new": null}]`)

	rows, err := DecodeRows(body, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, rows[0].Fields())
	assert.Equal(t, []string{"alpha", "new"}, rows[1].Fields())

	v, _ := rows[0].Get("zeta")
	assert.Equal(t, Number("1"), v)
	v, _ = rows[0].Get("mid")
	assert.Equal(t, true, v)
	v, ok := rows[1].Get("new")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestDecodeRowsUnderKey(t *testing.T) {
	body := []byte(`{"events": [{"id": 1, "name": "Gameweek 1", "chip_plays": [{"chip_name": "wildcard", "num_played": 10}]}], "teams": []}`)

	rows, err := DecodeRows(body, "events")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	chips, _ := rows[0].Get("chip_plays")
	list, ok := chips.([]interface{})
	require.True(t, ok)
	require.Len(t, list, 1)
	inner, ok := list[0].(*models.Record)
	require.True(t, ok)
	assert.Equal(t, []string{"chip_name", "num_played"}, inner.Fields())

	rows, err = DecodeRows(body, "teams")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDecodeRowsMissingOrNull(t *testing.T) {
	rows, err := DecodeRows([]byte(`{"events": null}`), "events")
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = DecodeRows([]byte(`{"other": []}`), "events")
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = DecodeRows([]byte(`null`), "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDecodeRowsSchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		key  string
	}{
		{name: "html", body: `<html>oops</html>`},
		{name: "truncated", body: `[{"a": 1}`},
		{name: "scalar document", body: `42`},
		{name: "array of scalars", body: `[1, 2, 3]`},
		{name: "object without key", body: `{"a": 1}`},
		{name: "key holds object", body: `{"events": {"id": 1}}`, key: "events"},
		{name: "array when key wanted", body: `[{"a": 1}]`, key: "events"},
		{name: "empty body", body: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRows([]byte(tt.body), tt.key)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeSchema), "got %v", err)
		})
	}
}

func TestDecodeEscapesAndNumbers(t *testing.T) {
	v, err := Decode([]byte(`{"name": "Müller \"Tom\"", "price": 5.5, "big": 12345678901234}`))
	require.NoError(t, err)

	rec := v.(*models.Record)
	name, _ := rec.Get("name")
	assert.Equal(t, `Müller "Tom"`, name)
	price, _ := rec.Get("price")
	assert.Equal(t, Number("5.5"), price)
	big, _ := rec.Get("big")
	n, err := big.(Number).Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(12345678901234), n)
}

func TestMarshalRecord(t *testing.T) {
	data, err := Marshal([]interface{}{models.RecordFrom("a", Number("1"))})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"a": 1}]`, string(data))
}

func TestDecodeNumberRange(t *testing.T) {
	rows, err := DecodeRows([]byte(`[{"total": 123456789012345678901234567890}]`), "")
	require.NoError(t, err)
	v, _ := rows[0].Get("total")
	assert.Equal(t, Number("123456789012345678901234567890"), v)

	// numbers beyond float64 are not accepted
	_, err = DecodeRows([]byte(`[{"total": 1e400}]`), "")
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))

	_, err = DecodeRows([]byte(`[{"a": 1}] [{"a": 2}]`), "")
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
}
