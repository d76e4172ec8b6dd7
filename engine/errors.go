package engine

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/hatlonely/spendagg/hierarchy"
	"github.com/hatlonely/spendagg/search"
)

// ValidationError 客户端输入错误
type ValidationError = hierarchy.ValidationError

// TransportError 搜索后端错误
type TransportError = search.TransportError

const tooManyValuesHint = "Narrow filters to return results or use downloads."

// TooManyValuesError 所需 shard_size 超过上限
type TooManyValuesError struct {
	Field     string
	ShardSize int
	Ceiling   int
}

func (e *TooManyValuesError) Error() string {
	return fmt.Sprintf("Current filters return too many unique items. %s (field %s needs shard_size %d > %d)",
		tooManyValuesHint, e.Field, e.ShardSize, e.Ceiling)
}

// Kind 错误分类
type Kind string

const (
	KindValidation    Kind = "validation"
	KindTooManyValues Kind = "too_many_values"
	KindTransport     Kind = "transport"
	KindCanceled      Kind = "canceled"
	KindInternal      Kind = "internal"
)

// ErrorPayload 调用方可直接返回给客户端的错误描述
type ErrorPayload struct {
	Status  int    `json:"status"`
	Kind    Kind   `json:"kind"`
	Field   string `json:"field,omitempty"`
	Message string `json:"detail"`
	Hint    string `json:"hint,omitempty"`
}

// Describe 把引擎返回的错误映射为状态码和提示，err 为 nil 时返回 nil
func Describe(err error) *ErrorPayload {
	if err == nil {
		return nil
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		return &ErrorPayload{Status: http.StatusBadRequest, Kind: KindValidation, Field: verr.Field, Message: verr.Error()}
	}
	var terr *TooManyValuesError
	if errors.As(err, &terr) {
		return &ErrorPayload{Status: http.StatusUnprocessableEntity, Kind: KindTooManyValues, Field: terr.Field, Message: terr.Error(), Hint: tooManyValuesHint}
	}
	var serr *TransportError
	if errors.As(err, &serr) {
		return &ErrorPayload{Status: http.StatusServiceUnavailable, Kind: KindTransport, Message: serr.Error(), Hint: "Retry later."}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ErrorPayload{Status: http.StatusServiceUnavailable, Kind: KindCanceled, Message: err.Error()}
	}
	return &ErrorPayload{Status: http.StatusInternalServerError, Kind: KindInternal, Message: err.Error()}
}

// outcome 指标和日志里的结果标签
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(Describe(err).Kind)
}

func (p *ErrorPayload) kindOrEmpty() Kind {
	if p == nil {
		return ""
	}
	return p.Kind
}
