package model

import (
	"fmt"
	"sort"
	"strings"
)

// 代理记录的标准属性名。ip 与 port 为必填项，其余取决于代理源。
const (
	KeyIP             = "ip"
	KeyPort           = "port"
	KeyCountryCode    = "country_code"
	KeyCountryName    = "country_name"
	KeyAnonymityLevel = "anonymity_level"
	KeySupportsGoogle = "supports_google"
	KeySupportsHTTPS  = "supports_https"
	KeyLastChecked    = "last_checked"
)

// TableKeys 是 HTML 表格类代理源固定的 8 列顺序。
var TableKeys = []string{
	KeyIP,
	KeyPort,
	KeyCountryCode,
	KeyCountryName,
	KeyAnonymityLevel,
	KeySupportsGoogle,
	KeySupportsHTTPS,
	KeyLastChecked,
}

// Attribute 是 ProxyRecord 中的一个 键/值 对。
type Attribute struct {
	Key   string
	Value string
}

// ProxyRecord 描述一个候选代理，是整个模块的核心数据结构。
// 它只能通过 NewRecord 创建，创建后不可修改；属性保持创建时的顺序。
type ProxyRecord struct {
	attrs []Attribute
}

// NewRecord 创建一条代理记录。缺少 ip/port、键为空或键重复时返回错误。
func NewRecord(attrs ...Attribute) (ProxyRecord, error) {
	seen := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		if a.Key == "" {
			return ProxyRecord{}, fmt.Errorf("proxy record: empty attribute key")
		}
		if _, dup := seen[a.Key]; dup {
			return ProxyRecord{}, fmt.Errorf("proxy record: duplicate attribute %q", a.Key)
		}
		seen[a.Key] = struct{}{}
	}
	for _, k := range []string{KeyIP, KeyPort} {
		if _, ok := seen[k]; !ok {
			return ProxyRecord{}, fmt.Errorf("proxy record: missing mandatory attribute %q", k)
		}
	}

	cp := make([]Attribute, len(attrs))
	copy(cp, attrs)
	return ProxyRecord{attrs: cp}, nil
}

// NewTableRecord 按 TableKeys 的列顺序创建记录，values 必须恰好 8 个。
func NewTableRecord(values []string) (ProxyRecord, error) {
	if len(values) != len(TableKeys) {
		return ProxyRecord{}, fmt.Errorf("proxy record: expected %d columns, got %d", len(TableKeys), len(values))
	}
	attrs := make([]Attribute, len(values))
	for i, v := range values {
		attrs[i] = Attribute{Key: TableKeys[i], Value: v}
	}
	return NewRecord(attrs...)
}

// Get 返回属性值。
func (r ProxyRecord) Get(key string) (string, bool) {
	for _, a := range r.attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

func (r ProxyRecord) IP() string {
	v, _ := r.Get(KeyIP)
	return v
}

func (r ProxyRecord) Port() string {
	v, _ := r.Get(KeyPort)
	return v
}

// Keys 返回记录的属性名 (按创建顺序)。
func (r ProxyRecord) Keys() []string {
	keys := make([]string, len(r.attrs))
	for i, a := range r.attrs {
		keys[i] = a.Key
	}
	return keys
}

// Attributes returns a copy of the ordered attribute list.
func (r ProxyRecord) Attributes() []Attribute {
	cp := make([]Attribute, len(r.attrs))
	copy(cp, r.attrs)
	return cp
}

// Map returns the attributes as a freshly allocated map.
func (r ProxyRecord) Map() map[string]string {
	m := make(map[string]string, len(r.attrs))
	for _, a := range r.attrs {
		m[a.Key] = a.Value
	}
	return m
}

// IsZero 表示记录未经 NewRecord 初始化。
func (r ProxyRecord) IsZero() bool {
	return len(r.attrs) == 0
}

// Equal 比较两条记录的属性集合，不考虑顺序。
func (r ProxyRecord) Equal(other ProxyRecord) bool {
	if len(r.attrs) != len(other.attrs) {
		return false
	}
	for _, a := range r.attrs {
		v, ok := other.Get(a.Key)
		if !ok || v != a.Value {
			return false
		}
	}
	return true
}

// SameSchema 判断两条记录是否拥有相同的属性名集合。
func (r ProxyRecord) SameSchema(other ProxyRecord) bool {
	if len(r.attrs) != len(other.attrs) {
		return false
	}
	for _, a := range r.attrs {
		if _, ok := other.Get(a.Key); !ok {
			return false
		}
	}
	return true
}

func (r ProxyRecord) String() string {
	return FormatAsString(r)
}

// FormatAsString 返回代理的规范字符串形式 "ip:port"。
func FormatAsString(r ProxyRecord) string {
	return r.IP() + ":" + r.Port()
}

// ParseFromString 解析 "ip:port" 形式的字符串，结果只包含 ip 与 port 两个属性。
// 输入必须恰好包含一个 ':' 且两侧都非空。
func ParseFromString(text string) (ProxyRecord, error) {
	s := strings.TrimSpace(text)
	if strings.Count(s, ":") != 1 {
		return ProxyRecord{}, &FormatError{Input: text, Reason: "expected exactly one ':' separator"}
	}
	ip, port, _ := strings.Cut(s, ":")
	if ip == "" || port == "" {
		return ProxyRecord{}, &FormatError{Input: text, Reason: "empty ip or port"}
	}
	return NewRecord(Attribute{Key: KeyIP, Value: ip}, Attribute{Key: KeyPort, Value: port})
}

// FilterSpec 是 属性名 -> 期望值 的映射，所有条目按 AND 组合，值做精确字符串比较。
type FilterSpec map[string]string

// Matches 判断记录是否满足全部过滤条件。
func (f FilterSpec) Matches(r ProxyRecord) bool {
	for k, want := range f {
		got, ok := r.Get(k)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Keys returns the filter keys in sorted order.
func (f FilterSpec) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseFilterSpec 解析命令行形式 "key:value,key:value"。空字符串返回 nil。
func ParseFilterSpec(s string) (FilterSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	spec := make(FilterSpec)
	for _, item := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(item), ":")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid filter item %q: want key:value", item)
		}
		spec[k] = strings.TrimSpace(v)
	}
	return spec, nil
}
