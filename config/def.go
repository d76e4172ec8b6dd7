package config

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// SetDefaults 按 def 标签为零值字段设置默认值
// 递归处理嵌套结构体、非空指针以及结构体切片，空指针保持为空
func SetDefaults(object interface{}) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("object must be a non-nil pointer")
	}
	return setDefaults(rv.Elem())
}

func setDefaults(rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return setDefaults(rv.Elem())
	case reflect.Slice:
		for i := 0; i < rv.Len(); i++ {
			if err := setDefaults(rv.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if rv.Type().Elem().Kind() != reflect.Ptr {
			return nil
		}
		for _, key := range rv.MapKeys() {
			if err := setDefaults(rv.MapIndex(key)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
	default:
		return nil
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		value := rv.Field(i)
		if !value.CanSet() {
			continue
		}

		if err := setDefaults(value); err != nil {
			return errors.WithMessagef(err, "field %s", field.Name)
		}

		def := field.Tag.Get("def")
		if def == "" || !value.IsZero() {
			continue
		}
		if value.Kind() == reflect.Ptr {
			value.Set(reflect.New(value.Type().Elem()))
			value = value.Elem()
		}
		if err := setValue(value, def); err != nil {
			return errors.WithMessagef(err, "field %s", field.Name)
		}
	}
	return nil
}

func setValue(rv reflect.Value, def string) error {
	if rv.Type() == durationType {
		d, err := time.ParseDuration(def)
		if err != nil {
			return errors.Wrapf(err, "invalid duration %q", def)
		}
		rv.SetInt(int64(d))
		return nil
	}

	switch rv.Kind() {
	case reflect.String:
		rv.SetString(def)
	case reflect.Bool:
		v, err := strconv.ParseBool(def)
		if err != nil {
			return errors.Wrapf(err, "invalid bool %q", def)
		}
		rv.SetBool(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(def, 0, rv.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "invalid int %q", def)
		}
		rv.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(def, 0, rv.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "invalid uint %q", def)
		}
		rv.SetUint(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(def, rv.Type().Bits())
		if err != nil {
			return errors.Wrapf(err, "invalid float %q", def)
		}
		rv.SetFloat(v)
	case reflect.Slice:
		// JSON 数组或逗号分隔
		if strings.HasPrefix(strings.TrimSpace(def), "[") {
			ptr := reflect.New(rv.Type())
			if err := json.Unmarshal([]byte(def), ptr.Interface()); err != nil {
				return errors.Wrapf(err, "invalid slice %q", def)
			}
			rv.Set(ptr.Elem())
			return nil
		}
		parts := strings.Split(def, ",")
		out := reflect.MakeSlice(rv.Type(), len(parts), len(parts))
		for i, part := range parts {
			if err := setValue(out.Index(i), strings.TrimSpace(part)); err != nil {
				return err
			}
		}
		rv.Set(out)
	default:
		return errors.Errorf("unsupported default for %s", rv.Type())
	}
	return nil
}
