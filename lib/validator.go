// Package lib holds the request validator shared by the HTTP binding layer
// and the chat service.
package lib

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Validator implements gin's binding.StructValidator on top of
// go-playground/validator, reading rules from `binding` tags.
type Validator struct {
	once     sync.Once
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) lazyinit() {
	v.once.Do(func() {
		v.validate = validator.New(validator.WithRequiredStructEnabled())
		v.validate.SetTagName("binding")
		v.validate.RegisterTagNameFunc(fieldName)
	})
}

// ValidateStruct validates structs and pointers to structs; other values pass.
func (v *Validator) ValidateStruct(obj any) error {
	if obj == nil {
		return nil
	}
	value := reflect.ValueOf(obj)
	if value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return nil
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil
	}
	v.lazyinit()
	return v.validate.Struct(obj)
}

func (v *Validator) Engine() any {
	v.lazyinit()
	return v.validate
}

// MissingFields lists the fields that failed a `required` rule in err.
func MissingFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	var fields []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			fields = append(fields, fe.Field())
		}
	}
	return fields
}

// fieldName reports fields by their form or json name.
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"form", "json"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}
