package search

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/pkg/errors"

	"github.com/hatlonely/spendagg/aggregation"
)

// ESOptions Elasticsearch连接选项
type ESOptions struct {
	Addresses  []string      `cfg:"addresses" yaml:"addresses" toml:"addresses" json:"addresses" def:"[\"http://localhost:9200\"]" validate:"required,min=1"`
	Username   string        `cfg:"username" yaml:"username" toml:"username" json:"username"`
	Password   string        `cfg:"password" yaml:"password" toml:"password" json:"password"`
	APIKey     string        `cfg:"apiKey" yaml:"apiKey" toml:"apiKey" json:"apiKey"`
	Timeout    time.Duration `cfg:"timeout" yaml:"timeout" toml:"timeout" json:"timeout" def:"30s"`
	MaxRetries int           `cfg:"maxRetries" yaml:"maxRetries" toml:"maxRetries" json:"maxRetries" def:"3"`
	// SkipPing 创建时不探测集群
	SkipPing bool `cfg:"skipPing" yaml:"skipPing" toml:"skipPing" json:"skipPing"`
}

// ES Elasticsearch 搜索后端
type ES struct {
	client *elasticsearch.Client
}

// NewESWithOptions 创建Elasticsearch实例
func NewESWithOptions(opts *ESOptions) (*ES, error) {
	cfg := elasticsearch.Config{
		Addresses: opts.Addresses,
		Username:  opts.Username,
		Password:  opts.Password,
		APIKey:    opts.APIKey,
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: opts.Timeout,
		},
		MaxRetries: opts.MaxRetries,
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create elasticsearch client")
	}

	if !opts.SkipPing {
		res, err := client.Info()
		if err != nil {
			return nil, &TransportError{Op: "info", Err: err}
		}
		defer res.Body.Close()
		if res.IsError() {
			return nil, &TransportError{Op: "info", Status: res.StatusCode, Reason: res.String()}
		}
	}

	return &ES{client: client}, nil
}

// NewES 使用已有客户端
func NewES(client *elasticsearch.Client) *ES {
	return &ES{client: client}
}

type esErrorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

type esSearchBody struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]interface{} `json:"aggregations"`
}

func (es *ES) Search(ctx context.Context, r *Request) (*Response, error) {
	body, err := json.Marshal(r.Body())
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search body")
	}

	req := esapi.SearchRequest{
		Index: []string{r.Index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, es.client)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.WithStack(ctxErr)
		}
		return nil, errors.WithStack(&TransportError{Op: "search", Err: err})
	}
	defer res.Body.Close()

	if res.IsError() {
		var eb esErrorBody
		reason := res.Status()
		if json.NewDecoder(res.Body).Decode(&eb) == nil && eb.Error.Reason != "" {
			reason = eb.Error.Type + ": " + eb.Error.Reason
		}
		return nil, errors.WithStack(&TransportError{Op: "search", Status: res.StatusCode, Reason: reason})
	}

	var sb esSearchBody
	if err := json.NewDecoder(res.Body).Decode(&sb); err != nil {
		return nil, errors.WithStack(&TransportError{Op: "decode", Status: res.StatusCode, Err: err})
	}

	aggs, err := aggregation.Parse(r.Aggregations, sb.Aggregations)
	if err != nil {
		return nil, errors.WithStack(&TransportError{Op: "decode", Status: res.StatusCode, Err: err})
	}

	resp := &Response{
		Took:         sb.Took,
		TotalHits:    sb.Hits.Total.Value,
		Aggregations: aggs,
	}
	for _, hit := range sb.Hits.Hits {
		resp.Hits = append(resp.Hits, hit.Source)
	}
	return resp, nil
}
