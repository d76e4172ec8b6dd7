package refdata

import (
	"github.com/pkg/errors"
)

var ErrUnknownDictionary = errors.New("unknown dictionary")

// Registry 按名字管理字典
type Registry struct {
	dictionaries map[string]*Dictionary
}

func NewRegistryWithOptions(options []*Options) (*Registry, error) {
	r := &Registry{dictionaries: make(map[string]*Dictionary, len(options))}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		if _, ok := r.dictionaries[opt.Name]; ok {
			_ = r.Close()
			return nil, errors.Errorf("duplicate dictionary %s", opt.Name)
		}
		d, err := NewDictionaryWithOptions(opt)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		r.dictionaries[opt.Name] = d
	}
	return r, nil
}

func (r *Registry) Get(name string) (*Dictionary, error) {
	d, ok := r.dictionaries[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownDictionary, name)
	}
	return d, nil
}

func (r *Registry) Close() error {
	var err error
	for _, d := range r.dictionaries {
		if cerr := d.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
