// Package reflector names Go types the way they are persisted: as
// "import/path.TypeName". Names are cached per type.
package reflector

import (
	"fmt"
	"reflect"
	"sync"
)

var cache sync.Map // reflect.Type -> string

// NameOf returns the persisted name of the dynamic type of x. Pointers are
// named after their element type.
func NameOf(x any) string { return NameOfType(reflect.TypeOf(x)) }

// NameFor returns the persisted name of T.
func NameFor[T any]() string { return NameOfType(reflect.TypeFor[T]()) }

func NameOfType(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if n, ok := cache.Load(t); ok {
		return n.(string)
	}
	n := t.PkgPath() + "." + t.Name()
	cache.Store(t, n)
	return n
}

// MustBeNamed panics unless T is a named, non-pointer type. Stored names of
// anonymous or pointer types cannot be resolved back to a value type.
func MustBeNamed[T any]() {
	t := reflect.TypeFor[T]()
	switch {
	case t.Kind() == reflect.Pointer:
		panic(fmt.Sprintf("reflector: %s must be a value type", t))
	case t.Name() == "" || t.PkgPath() == "":
		panic(fmt.Sprintf("reflector: %s is not a named type", t))
	}
}
