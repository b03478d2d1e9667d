// Package timeunit 定义 K 线周期（granularity）及其查找表。
package timeunit

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownGranularity 表示周期代码不在固定集合内。
var ErrUnknownGranularity = errors.New("unknown granularity")

// TimeUnit 描述一个周期：对外代码、交易所代码与分钟粒度。
type TimeUnit struct {
	Code           string
	RemoteCode     string
	BinSizeMinutes int
}

// builtin 顺序即 All() 的返回顺序。
var builtin = []TimeUnit{
	{Code: "1m", RemoteCode: "1m", BinSizeMinutes: 1},
	{Code: "5m", RemoteCode: "5m", BinSizeMinutes: 5},
	{Code: "15m", RemoteCode: "15m", BinSizeMinutes: 15},
	{Code: "30m", RemoteCode: "30m", BinSizeMinutes: 30},
	{Code: "1h", RemoteCode: "1h", BinSizeMinutes: 60},
	{Code: "4h", RemoteCode: "4h", BinSizeMinutes: 240},
	{Code: "1d", RemoteCode: "1d", BinSizeMinutes: 1440},
	{Code: "1w", RemoteCode: "1w", BinSizeMinutes: 10080},
	{Code: "1M", RemoteCode: "1M", BinSizeMinutes: 43200},
}

var defaultRegistry = mustRegistry(builtin...)

// Registry 是只读查找表，构建后不再修改。
type Registry struct {
	byCode map[string]TimeUnit
	order  []string
}

// NewRegistry 校验并构建查找表；代码区分大小写（1m 与 1M 不同）。
func NewRegistry(units ...TimeUnit) (*Registry, error) {
	r := &Registry{byCode: make(map[string]TimeUnit, len(units))}
	for _, u := range units {
		code := strings.TrimSpace(u.Code)
		if code == "" {
			return nil, fmt.Errorf("time unit code cannot be empty")
		}
		if u.BinSizeMinutes <= 0 {
			return nil, fmt.Errorf("time unit %s: bin size must be > 0", code)
		}
		if _, dup := r.byCode[code]; dup {
			return nil, fmt.Errorf("time unit %s declared twice", code)
		}
		if strings.TrimSpace(u.RemoteCode) == "" {
			u.RemoteCode = code
		}
		u.Code = code
		r.byCode[code] = u
		r.order = append(r.order, code)
	}
	return r, nil
}

func mustRegistry(units ...TimeUnit) *Registry {
	r, err := NewRegistry(units...)
	if err != nil {
		panic(err)
	}
	return r
}

// Default 返回内置周期表。
func Default() *Registry { return defaultRegistry }

// FromCode 按代码查找周期。
func (r *Registry) FromCode(code string) (TimeUnit, error) {
	u, ok := r.byCode[strings.TrimSpace(code)]
	if !ok {
		return TimeUnit{}, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownGranularity, code, strings.Join(r.order, ", "))
	}
	return u, nil
}

// All 按声明顺序返回全部周期。
func (r *Registry) All() []TimeUnit {
	out := make([]TimeUnit, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.byCode[code])
	}
	return out
}

// Codes 按声明顺序返回全部代码。
func (r *Registry) Codes() []string {
	return append([]string(nil), r.order...)
}

// FromCode 使用内置表查找。
func FromCode(code string) (TimeUnit, error) {
	return defaultRegistry.FromCode(code)
}

func (u TimeUnit) String() string { return u.Code }

// IsZero reports whether u is the zero value.
func (u TimeUnit) IsZero() bool { return u.Code == "" }

// Duration 返回单根 K 线的时长。
func (u TimeUnit) Duration() time.Duration {
	return time.Duration(u.BinSizeMinutes) * time.Minute
}

// Bins 返回覆盖 gap 所需的 K 线数量（向上取整）。
func (u TimeUnit) Bins(gap time.Duration) int64 {
	bin := u.Duration()
	if bin <= 0 || gap <= 0 {
		return 0
	}
	n := int64(gap / bin)
	if time.Duration(n)*bin < gap {
		n++
	}
	return n
}

// MarshalJSON 序列化为周期代码。
func (u TimeUnit) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Code)
}

// UnmarshalJSON 通过内置表还原周期。
func (u *TimeUnit) UnmarshalJSON(data []byte) error {
	var code string
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("time unit must be a string code: %w", err)
	}
	found, err := FromCode(code)
	if err != nil {
		return err
	}
	*u = found
	return nil
}
