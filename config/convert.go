package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Convert 把 Decode 得到的树写入 object 指向的结构体
// 字段名依次取 cfg、json、yaml 标签，找不到时忽略大小写匹配字段名
func Convert(src interface{}, object interface{}) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("object must be a non-nil pointer")
	}
	return convert(src, rv.Elem(), "")
}

func convert(src interface{}, dst reflect.Value, path string) error {
	if src == nil {
		return nil
	}
	sv := reflect.ValueOf(src)

	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return convert(src, dst.Elem(), path)
	}

	if dst.Type() == durationType {
		return convertDuration(sv, dst, path)
	}

	switch dst.Kind() {
	case reflect.Struct:
		m, ok := asMap(src)
		if !ok {
			return errors.Errorf("%s: expect object, got %T", display(path), src)
		}
		return convertStruct(m, dst, path)
	case reflect.Map:
		m, ok := asMap(src)
		if !ok {
			return errors.Errorf("%s: expect object, got %T", display(path), src)
		}
		if dst.IsNil() {
			dst.Set(reflect.MakeMapWithSize(dst.Type(), len(m)))
		}
		for k, v := range m {
			item := reflect.New(dst.Type().Elem()).Elem()
			if err := convert(v, item, path+"."+k); err != nil {
				return err
			}
			dst.SetMapIndex(reflect.ValueOf(k).Convert(dst.Type().Key()), item)
		}
		return nil
	case reflect.Slice:
		items := asSlice(sv)
		out := reflect.MakeSlice(dst.Type(), len(items), len(items))
		for i, item := range items {
			if err := convert(item, out.Index(i), fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil
	case reflect.Interface:
		dst.Set(sv)
		return nil
	case reflect.String:
		switch v := src.(type) {
		case string:
			dst.SetString(v)
		case int, int64, float64, bool:
			dst.SetString(fmt.Sprint(v))
		default:
			return errors.Errorf("%s: expect string, got %T", display(path), src)
		}
		return nil
	}

	if sv.Type().ConvertibleTo(dst.Type()) && sv.Kind() != reflect.String {
		dst.Set(sv.Convert(dst.Type()))
		return nil
	}
	return errors.Errorf("%s: cannot convert %T to %s", display(path), src, dst.Type())
}

func convertStruct(m map[string]interface{}, dst reflect.Value, path string) error {
	rt := dst.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := fieldName(field)
		if name == "-" {
			continue
		}

		value, ok := m[name]
		if !ok {
			for k, v := range m {
				if strings.EqualFold(k, name) {
					value, ok = v, true
					break
				}
			}
		}
		if !ok {
			continue
		}
		if err := convert(value, dst.Field(i), path+"."+name); err != nil {
			return err
		}
	}
	return nil
}

func fieldName(field reflect.StructField) string {
	for _, key := range []string{"cfg", "json", "yaml"} {
		if tag := strings.Split(field.Tag.Get(key), ",")[0]; tag != "" {
			return tag
		}
	}
	return field.Name
}

// convertDuration 字符串按 time.ParseDuration 解析，数字视为秒
func convertDuration(sv reflect.Value, dst reflect.Value, path string) error {
	switch sv.Kind() {
	case reflect.String:
		d, err := time.ParseDuration(sv.String())
		if err != nil {
			return errors.Wrapf(err, "%s: invalid duration", display(path))
		}
		dst.SetInt(int64(d))
	case reflect.Int, reflect.Int64:
		dst.SetInt(sv.Int() * int64(time.Second))
	case reflect.Float64:
		dst.SetInt(int64(sv.Float() * float64(time.Second)))
	default:
		return errors.Errorf("%s: cannot convert %s to duration", display(path), sv.Type())
	}
	return nil
}

func asMap(src interface{}) (map[string]interface{}, bool) {
	switch m := src.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	}
	return nil, false
}

// asSlice 单个值视为只有一个元素的数组
func asSlice(sv reflect.Value) []interface{} {
	if sv.Kind() != reflect.Slice && sv.Kind() != reflect.Array {
		return []interface{}{sv.Interface()}
	}
	items := make([]interface{}, sv.Len())
	for i := range items {
		items[i] = sv.Index(i).Interface()
	}
	return items
}

func display(path string) string {
	if path == "" {
		return "config"
	}
	return strings.TrimPrefix(path, ".")
}
