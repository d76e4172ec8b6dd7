package refdata

import (
	"context"
	"io"
	"time"

	"github.com/coocood/freecache"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"

	"github.com/hatlonely/spendagg/log"
	"github.com/hatlonely/spendagg/log/logger"
)

// RedisOptions 多个进程共享的二级缓存
type RedisOptions struct {
	Endpoint     string        `cfg:"endpoint" validate:"required"`
	Username     string        `cfg:"username"`
	Password     string        `cfg:"password"`
	DB           int           `cfg:"db"`
	KeyPrefix    string        `cfg:"keyPrefix" def:"spendagg:refdata:"`
	DialTimeout  time.Duration `cfg:"dialTimeout" def:"5s"`
	ReadTimeout  time.Duration `cfg:"readTimeout" def:"3s"`
	WriteTimeout time.Duration `cfg:"writeTimeout" def:"3s"`
	PoolSize     int           `cfg:"poolSize" def:"10"`
}

// Options 一个字典的配置，数据来源优先级 SQL > File > Codes
type Options struct {
	Name string `cfg:"name" validate:"required"`

	// 缓存有效期，过期后下一次未命中时重新加载
	TTL time.Duration `cfg:"ttl" def:"1h"`

	// 本地缓存容量，字节
	CacheSize int `cfg:"cacheSize" def:"1048576" validate:"gte=0"`

	Codes map[string]string `cfg:"codes"`
	File  string            `cfg:"file"`
	// 文件变化时清空缓存
	Watch bool        `cfg:"watch"`
	SQL   *SQLOptions `cfg:"sql"`

	Redis  *RedisOptions       `cfg:"redis"`
	Logger *logger.SLogOptions `cfg:"logger"`
}

type entry struct {
	Description string `msgpack:"d"`
	Found       bool   `msgpack:"f"`
}

// Dictionary code → description 的读穿缓存
// 本地 freecache 为一级，redis 为可选的二级，都未命中时通过 Loader 全量加载
type Dictionary struct {
	name      string
	ttl       time.Duration
	loader    Loader
	l1        *freecache.Cache
	l2        redis.Cmdable
	keyPrefix string
	group     singleflight.Group
	logger    logger.Logger

	closers   []io.Closer
	stopWatch func()
}

type DictionaryOption func(d *Dictionary)

func WithTTL(ttl time.Duration) DictionaryOption {
	return func(d *Dictionary) { d.ttl = ttl }
}

func WithCacheSize(size int) DictionaryOption {
	return func(d *Dictionary) { d.l1 = freecache.NewCache(size) }
}

// WithRedis 使用 client 作为二级缓存，key 为 prefix + 字典名 + ":" + code
func WithRedis(client redis.Cmdable, prefix string) DictionaryOption {
	return func(d *Dictionary) {
		d.l2 = client
		d.keyPrefix = prefix
	}
}

func WithLogger(l logger.Logger) DictionaryOption {
	return func(d *Dictionary) { d.logger = l }
}

func NewDictionary(name string, loader Loader, opts ...DictionaryOption) *Dictionary {
	d := &Dictionary{
		name:   name,
		ttl:    time.Hour,
		loader: loader,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.l1 == nil {
		d.l1 = freecache.NewCache(1024 * 1024)
	}
	d.logger = d.logger.WithGroup("refdata").With("dictionary", name)
	return d
}

func NewDictionaryWithOptions(options *Options) (*Dictionary, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}

	l, err := log.NewLoggerWithOptions(options.Logger)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create logger")
	}
	opts := []DictionaryOption{WithLogger(l), WithTTL(options.TTL)}
	if options.CacheSize > 0 {
		opts = append(opts, WithCacheSize(options.CacheSize))
	}

	var closers []io.Closer
	var loader Loader
	switch {
	case options.SQL != nil:
		sqlLoader, err := NewSQLLoaderWithOptions(options.SQL)
		if err != nil {
			return nil, errors.WithMessagef(err, "dictionary %s", options.Name)
		}
		loader = sqlLoader
		closers = append(closers, sqlLoader)
	case options.File != "":
		loader = &FileLoader{Path: options.File}
	default:
		loader = MapLoader(options.Codes)
	}

	if options.Redis != nil {
		client := redis.NewClient(&redis.Options{
			Addr:         options.Redis.Endpoint,
			Username:     options.Redis.Username,
			Password:     options.Redis.Password,
			DB:           options.Redis.DB,
			DialTimeout:  options.Redis.DialTimeout,
			ReadTimeout:  options.Redis.ReadTimeout,
			WriteTimeout: options.Redis.WriteTimeout,
			PoolSize:     options.Redis.PoolSize,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			_ = client.Close()
			return nil, errors.WithMessage(err, "redis.client.Ping failed")
		}
		opts = append(opts, WithRedis(client, options.Redis.KeyPrefix))
		closers = append(closers, client)
	}

	d := NewDictionary(options.Name, loader, opts...)
	d.closers = closers

	if fileLoader, ok := loader.(*FileLoader); ok && options.Watch {
		stop, err := fileLoader.Watch(context.Background(), d.logger, func() {
			if err := d.Invalidate(context.Background()); err != nil {
				d.logger.Warn("invalidate failed", "error", err.Error())
			}
		})
		if err != nil {
			_ = d.Close()
			return nil, errors.WithMessagef(err, "watch %s", options.File)
		}
		d.stopWatch = stop
	}
	return d, nil
}

func (d *Dictionary) Name() string {
	return d.name
}

// Get 返回 code 的描述，ok 为 false 表示字典中没有该 code
func (d *Dictionary) Get(ctx context.Context, code string) (string, bool, error) {
	if e, ok := d.getL1(code); ok {
		return e.Description, e.Found, nil
	}

	if d.l2 != nil {
		e, ok, err := d.getL2(ctx, code)
		if err != nil {
			d.logger.WarnContext(ctx, "redis get failed", "code", code, "error", err.Error())
		} else if ok {
			d.setL1(code, e)
			return e.Description, true, nil
		}
	}

	entries, err := d.load(ctx)
	if err != nil {
		return "", false, err
	}
	description, ok := entries[code]
	if !ok {
		// 未知 code 也缓存，避免反复加载
		d.setL1(code, entry{})
	}
	return description, ok, nil
}

// Refresh 清空缓存后重新全量加载，返回条目数，源中已删除的 code 不再返回旧描述
func (d *Dictionary) Refresh(ctx context.Context) (int, error) {
	if err := d.Invalidate(ctx); err != nil {
		return 0, err
	}
	entries, err := d.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Invalidate 清空本地缓存以及 redis 中该字典的 key
func (d *Dictionary) Invalidate(ctx context.Context) error {
	d.l1.Clear()
	if d.l2 == nil {
		return nil
	}

	var cursor uint64
	for {
		keys, next, err := d.l2.Scan(ctx, cursor, d.key("*"), 1000).Result()
		if err != nil {
			return errors.Wrap(err, "redis scan failed")
		}
		if len(keys) > 0 {
			if err := d.l2.Del(ctx, keys...).Err(); err != nil {
				return errors.Wrap(err, "redis del failed")
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// CachedEntries 本地缓存中的条目数，包括未知 code
func (d *Dictionary) CachedEntries() int64 {
	return d.l1.EntryCount()
}

func (d *Dictionary) Close() error {
	if d.stopWatch != nil {
		d.stopWatch()
		d.stopWatch = nil
	}
	var err error
	for _, c := range d.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close failed")
		}
	}
	d.closers = nil
	return err
}

func (d *Dictionary) load(ctx context.Context) (map[string]string, error) {
	v, err, _ := d.group.Do("load", func() (interface{}, error) {
		start := time.Now()
		entries, err := d.loader.Load(ctx)
		if err != nil {
			return nil, errors.WithMessagef(err, "load dictionary %s", d.name)
		}
		for code, description := range entries {
			d.setL1(code, entry{Description: description, Found: true})
		}
		if d.l2 != nil {
			if err := d.setL2(ctx, entries); err != nil {
				d.logger.WarnContext(ctx, "redis set failed", "error", err.Error())
			}
		}
		d.logger.InfoContext(ctx, "dictionary loaded", "entries", len(entries), "elapsed", time.Since(start).String())
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]string), nil
}

func (d *Dictionary) key(code string) string {
	return d.keyPrefix + d.name + ":" + code
}

func (d *Dictionary) getL1(code string) (entry, bool) {
	buf, err := d.l1.Get([]byte(code))
	if err != nil {
		return entry{}, false
	}
	var e entry
	if err := msgpack.Unmarshal(buf, &e); err != nil {
		return entry{}, false
	}
	return e, true
}

func (d *Dictionary) setL1(code string, e entry) {
	buf, err := msgpack.Marshal(&e)
	if err != nil {
		return
	}
	_ = d.l1.Set([]byte(code), buf, int(d.ttl.Seconds()))
}

func (d *Dictionary) getL2(ctx context.Context, code string) (entry, bool, error) {
	buf, err := d.l2.Get(ctx, d.key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return entry{}, false, nil
	}
	if err != nil {
		return entry{}, false, errors.Wrap(err, "redis get failed")
	}
	var e entry
	if err := msgpack.Unmarshal(buf, &e); err != nil {
		return entry{}, false, errors.Wrap(err, "msgpack.Unmarshal failed")
	}
	return e, true, nil
}

func (d *Dictionary) setL2(ctx context.Context, entries map[string]string) error {
	pipe := d.l2.Pipeline()
	for code, description := range entries {
		buf, err := msgpack.Marshal(&entry{Description: description, Found: true})
		if err != nil {
			return errors.Wrap(err, "msgpack.Marshal failed")
		}
		pipe.Set(ctx, d.key(code), buf, d.ttl)
	}
	_, err := pipe.Exec(ctx)
	return errors.Wrap(err, "redis pipeline failed")
}
