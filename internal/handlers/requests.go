// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report fields by their JSON names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// An optionalID counts as present once its key appeared in the body,
	// even with a null value.
	validate.RegisterCustomTypeFunc(func(v reflect.Value) any {
		return v.Interface().(optionalID).Set
	}, optionalID{})
}

// createRequest is the body of POST /category. A missing or null parentId
// creates a root. The name limit counts runes.
type createRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	ParentID *int64 `json:"parentId"`
}

func (r *createRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

// moveRequest is the body of PATCH /category/{id}/move. targetParentId must
// be present; null moves the category to the root level.
type moveRequest struct {
	TargetParentID optionalID `json:"targetParentId" validate:"required"`
}

func (r *moveRequest) normalize() {}

// optionalID is a JSON integer that remembers whether its key was present,
// so an explicit null can be told apart from a missing field.
type optionalID struct {
	Set   bool
	Value *int64
}

// UnmarshalJSON implements json.Unmarshaler. It is called for null as well,
// which is what marks the field as present.
func (o *optionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// MarshalJSON implements json.Marshaler.
func (o optionalID) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}
