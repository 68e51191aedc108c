package httputil

import (
	"reflect"
	"strings"
)

// sanitize trims surrounding whitespace from every settable string reachable
// from v: struct fields, slice elements and non-nil pointers. Struct fields
// tagged `sanitize:"-"` (passwords) keep their exact bytes.
func sanitize(v any) {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Pointer || val.IsNil() {
		return
	}
	trim(val.Elem())
}

func trim(val reflect.Value) {
	switch val.Kind() {
	case reflect.String:
		if val.CanSet() {
			val.SetString(strings.TrimSpace(val.String()))
		}
	case reflect.Pointer:
		if !val.IsNil() {
			trim(val.Elem())
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < val.Len(); i++ {
			trim(val.Index(i))
		}
	case reflect.Struct:
		typ := val.Type()
		for i := 0; i < val.NumField(); i++ {
			if !typ.Field(i).IsExported() || typ.Field(i).Tag.Get("sanitize") == "-" {
				continue
			}
			trim(val.Field(i))
		}
	}
}
