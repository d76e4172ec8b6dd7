package engine

// Options 聚合引擎配置
type Options struct {
	// RoutingField 索引按该字段路由分片，对其聚合时不做精确去重计数
	RoutingField string `cfg:"routingField" yaml:"routingField" toml:"routingField" json:"routingField" def:"recipient_hash"`
	// Ceiling 单次请求允许的最大 shard_size
	Ceiling int `cfg:"ceiling" yaml:"ceiling" toml:"ceiling" json:"ceiling" def:"10000" validate:"gt=0"`
	// ShardSizeMargin 精确计数时 shard_size 在 size 之上的余量
	ShardSizeMargin int `cfg:"shardSizeMargin" yaml:"shardSizeMargin" toml:"shardSizeMargin" json:"shardSizeMargin" def:"100" validate:"gte=0"`
	// CountFieldSuffix 精确去重计数使用的子字段
	CountFieldSuffix string `cfg:"countFieldSuffix" yaml:"countFieldSuffix" toml:"countFieldSuffix" json:"countFieldSuffix" def:".hash"`
	// ScaleFactor 求和前对每个值的放大倍数，解析时除回
	ScaleFactor int `cfg:"scaleFactor" yaml:"scaleFactor" toml:"scaleFactor" json:"scaleFactor" def:"100" validate:"gt=0"`
	// RoundPlaces 金额保留的小数位
	RoundPlaces int `cfg:"roundPlaces" yaml:"roundPlaces" toml:"roundPlaces" json:"roundPlaces" def:"2" validate:"gte=0"`
	// PartitionSize 分区扫描时每个分区的桶数
	PartitionSize int `cfg:"partitionSize" yaml:"partitionSize" toml:"partitionSize" json:"partitionSize" def:"1000" validate:"gt=0"`
	// MaxKeys 分区列举 key 时最多返回的数量
	MaxKeys int `cfg:"maxKeys" yaml:"maxKeys" toml:"maxKeys" json:"maxKeys" def:"500000" validate:"gt=0"`
	// Concurrency 并发扫描分区的上限，1 表示顺序扫描
	Concurrency int `cfg:"concurrency" yaml:"concurrency" toml:"concurrency" json:"concurrency" def:"1" validate:"gt=0"`
	// EnableTracing 是否创建 span
	EnableTracing bool `cfg:"enableTracing" yaml:"enableTracing" toml:"enableTracing" json:"enableTracing"`
}

// DefaultOptions 与 def 标签一致的默认配置
func DefaultOptions() *Options {
	return &Options{
		RoutingField:     "recipient_hash",
		Ceiling:          10000,
		ShardSizeMargin:  100,
		CountFieldSuffix: ".hash",
		ScaleFactor:      100,
		RoundPlaces:      2,
		PartitionSize:    1000,
		MaxKeys:          500000,
		Concurrency:      1,
	}
}
