package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Jeffail/gabs/v2"
)

var ErrNotObject = errors.New("document must be a JSON object")

// MergeJSON writes the fields of patch over base and returns the result.
// Field names containing dots address nested fields, so {"address.city": x}
// changes only the city. Fields absent from patch are kept.
func MergeJSON(base, patch []byte) ([]byte, error) {
	p, err := parseObject(patch)
	if err != nil {
		return nil, fmt.Errorf("patch: %w", err)
	}
	target := gabs.New()
	if len(base) > 0 {
		if target, err = parseObject(base); err != nil {
			return nil, fmt.Errorf("base: %w", err)
		}
	}
	for field, value := range p.ChildrenMap() {
		if _, err := target.SetP(value.Data(), field); err != nil {
			return nil, fmt.Errorf("set %s: %w", field, err)
		}
	}
	return target.Bytes(), nil
}

// ValidateObject rejects payloads that are not JSON objects.
func ValidateObject(data []byte) error {
	_, err := parseObject(data)
	return err
}

// parseObject keeps numbers as json.Number so fields passing through a
// merge are written back exactly as stored.
func parseObject(data []byte) (*gabs.Container, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	c, err := gabs.ParseJSONDecoder(decoder)
	if err != nil {
		return nil, err
	}
	if _, err := decoder.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON object")
	}
	if _, ok := c.Data().(map[string]interface{}); !ok {
		return nil, ErrNotObject
	}
	return c, nil
}
