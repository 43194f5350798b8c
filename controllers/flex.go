package controllers

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// flexInt accepts 3, 3.0, "3" or "" in JSON bodies; front-ends send all of them.
type flexInt struct {
	Value int
	Set   bool
	Bad   bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		f.Value, f.Set = int(v), true
		f.Bad = v != float64(int(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		f.Value, f.Set, f.Bad = n, true, err != nil
	default:
		f.Set, f.Bad = true, true
	}
	return nil
}

func (f flexInt) ptr() *int {
	if !f.Set {
		return nil
	}
	v := f.Value
	return &v
}

// id returns a positive ID, or 0 when absent or malformed.
func (f flexInt) id() uint {
	if !f.Set || f.Bad || f.Value <= 0 {
		return 0
	}
	return uint(f.Value)
}
