package request

import (
	"fmt"
	"io"
	"net/url"
	"reflect"

	"github.com/fgrzl/hubkit/pkg/codec"
	"golang.org/x/net/html"
)

type bodyKind int

const (
	bodyNone bodyKind = iota
	bodyNative
	bodyObject
	bodyScalar
	bodyUnsupported
)

// classifyBody splits bodies into those the transport sends as-is, those
// that are JSON encoded first, scalars that can only go out as text and
// everything else. A nil pointer is no body.
func classifyBody(body any) bodyKind {
	switch b := body.(type) {
	case nil:
		return bodyNone
	case *codec.Object:
		if b == nil {
			return bodyNone
		}
		return bodyObject
	case *html.Node:
		if b == nil {
			return bodyNone
		}
		return bodyNative
	case string, []byte, io.Reader, url.Values:
		return bodyNative
	}

	v := reflect.ValueOf(body)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return bodyNone
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array:
		return bodyObject
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return bodyScalar
	}
	if _, ok := body.(fmt.Stringer); ok {
		return bodyScalar
	}
	return bodyUnsupported
}

// scalarText renders a scalar body the way it goes on the wire.
func scalarText(body any) string {
	if s, ok := body.(fmt.Stringer); ok {
		return s.String()
	}
	v := reflect.ValueOf(body)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	return fmt.Sprint(v.Interface())
}
