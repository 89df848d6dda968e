package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/geocoder89/usershub/internal/apperr"
	"github.com/geocoder89/usershub/internal/domain/user"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// BindPayload decodes a JSON or urlencoded form body into p. Decoding
// failures come back as validation errors naming the offending field; an
// empty body decodes to the zero value so the validator reports what is
// missing. Keys that match no field are recorded in p.Unknown.
func BindPayload(ctx *gin.Context, p *user.Payload) error {
	if strings.EqualFold(ctx.ContentType(), binding.MIMEPOSTForm) {
		return bindForm(ctx, p)
	}

	return bindJSON(ctx, p)
}

func bindJSON(ctx *gin.Context, p *user.Payload) error {
	if ctx.Request.Body == nil {
		return nil
	}

	raw, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		return bindError(err, p)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	// Unmarshal rejects anything after the first JSON value.
	if err := json.Unmarshal(raw, p); err != nil {
		return bindError(err, p)
	}

	p.Unknown = unknownJSONKeys(raw, knownKeys(reflect.TypeOf(*p), "json"))
	return nil
}

// unknownJSONKeys walks the top-level object of an already validated document.
func unknownJSONKeys(raw []byte, known map[string]bool) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))

	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}

	var unknown []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return unknown
		}

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return unknown
		}

		if key, _ := tok.(string); !known[key] {
			unknown = append(unknown, key)
		}
	}

	return unknown
}

func bindForm(ctx *gin.Context, p *user.Payload) error {
	if err := ctx.ShouldBindWith(p, binding.FormPost); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return apperr.Validation("", "form", "Invalid form payload")
	}

	known := knownKeys(reflect.TypeOf(*p), "form")

	keys := make([]string, 0, len(ctx.Request.PostForm))
	for key := range ctx.Request.PostForm {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if known[key] && len(ctx.Request.PostForm[key]) > 1 {
			return apperr.Validation(key, "type", fmt.Sprintf("%q must be a string", key))
		}
		if !known[key] {
			p.Unknown = append(p.Unknown, key)
		}
	}

	return nil
}

func knownKeys(t reflect.Type, tagName string) map[string]bool {
	known := make(map[string]bool, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get(tagName), ",")
		if name != "" && name != "-" {
			known[name] = true
		}
	}

	return known
}

func bindError(err error, out interface{}) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}

	var syntaxError *json.SyntaxError
	if errors.As(err, &syntaxError) || errors.Is(err, io.ErrUnexpectedEOF) {
		return apperr.Validation("", "json", "Invalid JSON payload")
	}

	var typeError *json.UnmarshalTypeError
	if errors.As(err, &typeError) {
		field := jsonPathFromDotPath(baseStructType(out), typeError.Field)
		if field == "" {
			field = "value"
		}

		return apperr.Validation(field, "type", fmt.Sprintf("%q must be %s", field, typeName(typeError.Type)))
	}

	return apperr.Validation("", "json", "Invalid request body")
}

func typeName(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "of a valid type"
	}

	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Struct, reflect.Map:
		return "of type object"
	default:
		return "of type " + t.String()
	}
}

func baseStructType(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)

	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t != nil && t.Kind() == reflect.Struct {
		return t
	}

	return nil
}

// jsonPathFromDotPath maps a Go field path ("Name") to its JSON name ("name").
// encoding/json already reports JSON names for most paths; unknown parts pass through.
func jsonPathFromDotPath(rootType reflect.Type, dotPath string) string {
	dotPath = strings.TrimSpace(dotPath)
	if dotPath == "" {
		return ""
	}

	parts := strings.Split(dotPath, ".")
	out := make([]string, 0, len(parts))
	current := rootType

	for _, part := range parts {
		if part == "" {
			continue
		}

		name := part
		var next reflect.Type

		if current != nil {
			if sf, ok := fieldByNameOrJSON(current, part); ok {
				name = jsonNameFromStructField(sf)
				next = unwind(sf.Type)
			}
		}

		out = append(out, name)
		current = next
	}

	return strings.Join(out, ".")
}

func fieldByNameOrJSON(t reflect.Type, name string) (reflect.StructField, bool) {
	if t.Kind() != reflect.Struct {
		return reflect.StructField{}, false
	}

	if sf, ok := t.FieldByName(name); ok {
		return sf, true
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if jsonNameFromStructField(sf) == name {
			return sf, true
		}
	}

	return reflect.StructField{}, false
}

func jsonNameFromStructField(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag == "" {
		return sf.Name
	}

	name, _, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" {
		return sf.Name
	}

	return name
}

func unwind(t reflect.Type) reflect.Type {
	for t != nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array:
			t = t.Elem()
		default:
			return t
		}
	}

	return nil
}
