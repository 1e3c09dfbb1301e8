package postgres

import (
	"reflect"
	"sync"
)

// ExtractDBColumns lists the "db" tags of T, descending into embedded structs.
// Repositories call it once at init to build their SELECT column lists.
func ExtractDBColumns[T any]() []string {
	var zero T
	meta := metadataFor(reflect.TypeOf(zero))
	return meta.columns()
}

type fieldInfo struct {
	index int
	dbTag string
}

type typeMetadata struct {
	fields   []fieldInfo
	embedded []int
	elemType reflect.Type
}

func (m *typeMetadata) columns() []string {
	cols := make([]string, 0, len(m.fields))
	for _, idx := range m.embedded {
		cols = append(cols, metadataFor(m.elemType.Field(idx).Type).columns()...)
	}
	for _, f := range m.fields {
		cols = append(cols, f.dbTag)
	}
	return cols
}

var typeCache sync.Map // map[reflect.Type]*typeMetadata

func metadataFor(t reflect.Type) *typeMetadata {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{elemType: t}
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.Anonymous {
				meta.embedded = append(meta.embedded, i)
				continue
			}
			tag := field.Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			meta.fields = append(meta.fields, fieldInfo{index: i, dbTag: tag})
		}
	}

	typeCache.Store(t, meta)
	return meta
}

// StructToMap converts a struct to column/value pairs using "db" tags, suitable
// for squirrel's SetMap. Fields tagged "-" or untagged are skipped.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	meta := metadataFor(rv.Type())
	res := make(map[string]any, len(meta.fields))
	for _, idx := range meta.embedded {
		for k, val := range StructToMap(rv.Field(idx).Interface()) {
			res[k] = val
		}
	}
	for _, fi := range meta.fields {
		res[fi.dbTag] = rv.Field(fi.index).Interface()
	}
	return res
}
