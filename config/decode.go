package config

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Decode 按格式把配置内容解析为 map/slice/标量组成的树
func Decode(data []byte, format string) (interface{}, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		var v interface{}
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, errors.Wrap(err, "yaml.Unmarshal failed")
		}
		return v, nil
	case "toml":
		var v map[string]interface{}
		if err := toml.Unmarshal(data, &v); err != nil {
			return nil, errors.Wrap(err, "toml.Unmarshal failed")
		}
		return v, nil
	case "json":
		var v interface{}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, errors.Wrap(err, "json.Unmarshal failed")
		}
		return v, nil
	case "ini":
		return decodeINI(data)
	default:
		return nil, errors.Errorf("unsupported config format: %q", format)
	}
}

// decodeINI section 名按 . 拆成嵌套层级，重复 key 解析为数组
func decodeINI(data []byte) (interface{}, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowShadows:             true,
		SpaceBeforeInlineComment: true,
	}, data)
	if err != nil {
		return nil, errors.Wrap(err, "ini.LoadSources failed")
	}

	result := map[string]interface{}{}
	for _, section := range file.Sections() {
		target := result
		if name := section.Name(); name != ini.DefaultSection {
			for _, part := range strings.Split(name, ".") {
				next, ok := target[part].(map[string]interface{})
				if !ok {
					next = map[string]interface{}{}
					target[part] = next
				}
				target = next
			}
		}
		for _, key := range section.Keys() {
			target[key.Name()] = iniValue(key)
		}
	}
	return result, nil
}

func iniValue(key *ini.Key) interface{} {
	if values := key.ValueWithShadows(); len(values) > 1 {
		out := make([]interface{}, len(values))
		for i, v := range values {
			out[i] = scalar(v)
		}
		return out
	}

	value := key.String()
	if parts := strings.Split(value, ","); len(parts) > 1 {
		out := make([]interface{}, len(parts))
		for i, part := range parts {
			out[i] = scalar(strings.TrimSpace(part))
		}
		return out
	}
	return scalar(value)
}

func scalar(value string) interface{} {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	if v, err := strconv.ParseInt(value, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(value, 64); err == nil {
		return v
	}
	return value
}
