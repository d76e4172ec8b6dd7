package codetree

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrUnknownTree = errors.New("unknown code tree")

// Options 一棵编码树的配置，编码来自 File 或 Codes
type Options struct {
	Name      string  `cfg:"name" yaml:"name" toml:"name" json:"name" validate:"required"`
	TierWidth int     `cfg:"tierWidth" yaml:"tierWidth" toml:"tierWidth" json:"tierWidth" def:"2" validate:"gte=0"`
	File      string  `cfg:"file" yaml:"file" toml:"file" json:"file"`
	Codes     []Entry `cfg:"codes" yaml:"codes" toml:"codes" json:"codes"`
}

// Registry 进程内所有编码树，启动时构建一次，之后只读
type Registry struct {
	trees map[string]*Tree
}

func NewRegistryWithOptions(options []*Options) (*Registry, error) {
	registry := &Registry{trees: make(map[string]*Tree, len(options))}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		if opt.Name == "" {
			return nil, errors.New("code tree name is required")
		}
		if _, ok := registry.trees[opt.Name]; ok {
			return nil, errors.Errorf("duplicate code tree %s", opt.Name)
		}

		entries := append([]Entry(nil), opt.Codes...)
		if opt.File != "" {
			loaded, err := LoadFile(opt.File)
			if err != nil {
				return nil, errors.WithMessagef(err, "load code tree %s", opt.Name)
			}
			entries = append(entries, loaded...)
		}
		registry.trees[opt.Name] = BuildEntries(entries, opt.TierWidth)
	}
	return registry, nil
}

// Tree 按名字取编码树
func (r *Registry) Tree(name string) (*Tree, error) {
	tree, ok := r.trees[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownTree, name)
	}
	return tree, nil
}

// Names 已注册的编码树名字，有序
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.trees))
	for name := range r.trees {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFile 读取 yaml 或 json 格式的编码列表
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "os.ReadFile failed")
	}

	var entries []Entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, errors.Wrap(err, "json.Unmarshal failed")
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, errors.Wrap(err, "yaml.Unmarshal failed")
		}
	default:
		return nil, errors.Errorf("unsupported code file format: %s", path)
	}
	return entries, nil
}
