// Package json decodes upstream JSON payloads into ordered records using goccy/go-json.
//
// Objects decode to *models.Record so that the field order of the payload
// survives into table column order. Numbers decode to json.Number so integers
// and floats can be told apart during type inference.
package json

import (
	"bytes"
	"io"
	"strings"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/pitchline/pkg/errors"
	"github.com/ajitpratap0/pitchline/pkg/models"
)

// Number is the decoded form of every JSON number.
type Number = gojson.Number

// Marshal is a drop-in replacement for json.Marshal that understands *models.Record
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(models.Plain(v))
}

// Decode decodes a single JSON document into ordered values. Numbers must fit
// a float64; a document holding e.g. 1e400 is rejected as invalid.
func Decode(data []byte) (interface{}, error) {
	if !gojson.Valid(data) {
		return nil, errors.New(errors.ErrorTypeSchema, "response body is not valid JSON")
	}

	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchema, "failed to decode JSON")
	}
	return v, nil
}

// DecodeRows decodes data and returns the rows it holds.
//
// With an empty key the document itself must be an array of objects. With a
// key the document must be an object and the rows are the array stored under
// key. A null document, a missing key or a null value yields no rows.
func DecodeRows(data []byte, key string) ([]*models.Record, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}

	value := doc
	if key != "" {
		switch d := doc.(type) {
		case nil:
			return nil, nil
		case *models.Record:
			value, _ = d.Get(key)
		default:
			return nil, errors.Newf(errors.ErrorTypeSchema, "expected a JSON object holding %q, got %s", key, kindName(doc))
		}
	}

	return rowsOf(value, key)
}

func rowsOf(value interface{}, key string) ([]*models.Record, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		rows := make([]*models.Record, 0, len(v))
		for i, item := range v {
			switch r := item.(type) {
			case *models.Record:
				rows = append(rows, r)
			case nil:
				rows = append(rows, models.NewRecord(0))
			default:
				return nil, errors.Newf(errors.ErrorTypeSchema, "row %d is %s, expected an object", i, kindName(item)).
					WithDetail("key", key)
			}
		}
		return rows, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeSchema, "expected an array of objects, got %s", kindName(value)).
			WithDetail("key", key)
	}
}

func decodeValue(dec *gojson.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return valueFromToken(dec, tok)
}

func valueFromToken(dec *gojson.Decoder, tok gojson.Token) (interface{}, error) {
	switch t := tok.(type) {
	case gojson.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, errors.Newf(errors.ErrorTypeSchema, "unexpected delimiter %q", rune(t))
		}
	case gojson.Number:
		// The decoder hands out numbers that alias its read buffer.
		return gojson.Number(strings.Clone(string(t))), nil
	default:
		return t, nil
	}
}

func decodeObject(dec *gojson.Decoder) (*models.Record, error) {
	rec := models.NewRecord(8)
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if d, ok := tok.(gojson.Delim); ok && d == '}' {
			return rec, nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeSchema, "object key must be a string, got %T", tok)
		}
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		rec.Set(key, value)
	}
}

func decodeArray(dec *gojson.Decoder) ([]interface{}, error) {
	items := make([]interface{}, 0, 16)
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if d, ok := tok.(gojson.Delim); ok && d == ']' {
			return items, nil
		}
		value, err := valueFromToken(dec, tok)
		if err != nil {
			return nil, err
		}
		items = append(items, value)
	}
}

func kindName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case *models.Record:
		return "an object"
	case []interface{}:
		return "an array"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case gojson.Number:
		return "a number"
	default:
		return "an unknown value"
	}
}
