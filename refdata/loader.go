package refdata

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hatlonely/spendagg/codetree"
	"github.com/hatlonely/spendagg/log/logger"
)

// Loader 一次性读取全部 code → description
type Loader interface {
	Load(ctx context.Context) (map[string]string, error)
}

// MapLoader 静态配置的字典
type MapLoader map[string]string

func (m MapLoader) Load(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(m))
	for code, description := range m {
		out[code] = description
	}
	return out, nil
}

// FileLoader 从 yaml/json 文件读取，文件内容可以是 {code: description} 或 [{code, description}]
type FileLoader struct {
	Path string
}

func (l *FileLoader) Load(ctx context.Context) (map[string]string, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, errors.Wrap(err, "os.ReadFile failed")
	}

	unmarshal := yaml.Unmarshal
	switch strings.ToLower(filepath.Ext(l.Path)) {
	case ".json":
		unmarshal = json.Unmarshal
	case ".yaml", ".yml":
	default:
		return nil, errors.Errorf("unsupported dictionary file format: %s", l.Path)
	}

	var m map[string]string
	if err := unmarshal(data, &m); err == nil {
		return m, nil
	}
	var entries []codetree.Entry
	if err := unmarshal(data, &entries); err != nil {
		return nil, errors.Wrapf(err, "decode %s failed", l.Path)
	}
	m = make(map[string]string, len(entries))
	for _, entry := range entries {
		m[entry.Code] = entry.Description
	}
	return m, nil
}

// Watch 文件被写入、创建或重命名时调用 onChange，直到 ctx 结束
func (l *FileLoader) Watch(ctx context.Context, log logger.Logger, onChange func()) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "fsnotify.NewWatcher failed")
	}
	if err := watcher.Add(filepath.Dir(l.Path)); err != nil {
		_ = watcher.Close()
		return nil, errors.Wrap(err, "watcher.Add failed")
	}

	path := filepath.Clean(l.Path)
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				log.Info("dictionary file changed", "path", path, "op", event.Op.String())
				onChange()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("watcher error", "path", path, "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}, nil
}

// SQLOptions 从数据库表读取字典
type SQLOptions struct {
	// 数据库驱动：sqlite, mysql
	Driver string `cfg:"driver" def:"sqlite" validate:"oneof=sqlite mysql"`
	DSN    string `cfg:"dsn" validate:"required"`
	Table  string `cfg:"table" validate:"required"`

	CodeColumn        string `cfg:"codeColumn" def:"code"`
	DescriptionColumn string `cfg:"descriptionColumn" def:"description"`
}

// SQLLoader 通过 gorm 读取 code/description 两列
type SQLLoader struct {
	db      *gorm.DB
	options *SQLOptions
}

func NewSQLLoaderWithOptions(options *SQLOptions) (*SQLLoader, error) {
	if options == nil {
		return nil, errors.New("sql options is nil")
	}

	var dialector gorm.Dialector
	switch options.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(options.DSN)
	case "mysql":
		dialector = mysql.Open(options.DSN)
	default:
		return nil, errors.Errorf("unsupported driver: %s", options.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, errors.Wrap(err, "gorm.Open failed")
	}
	return NewSQLLoader(db, options), nil
}

func NewSQLLoader(db *gorm.DB, options *SQLOptions) *SQLLoader {
	return &SQLLoader{db: db, options: options}
}

type entryRow struct {
	Code        string
	Description string
}

func (l *SQLLoader) Load(ctx context.Context) (map[string]string, error) {
	codeColumn := l.options.CodeColumn
	if codeColumn == "" {
		codeColumn = "code"
	}
	descriptionColumn := l.options.DescriptionColumn
	if descriptionColumn == "" {
		descriptionColumn = "description"
	}

	var rows []entryRow
	err := l.db.WithContext(ctx).
		Table(l.options.Table).
		Select(codeColumn + " AS code, " + descriptionColumn + " AS description").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrapf(err, "load table %s failed", l.options.Table)
	}

	m := make(map[string]string, len(rows))
	for _, row := range rows {
		m[row.Code] = row.Description
	}
	return m, nil
}

func (l *SQLLoader) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return errors.Wrap(err, "db.DB failed")
	}
	return sqlDB.Close()
}
