package manager

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"github.com/valyala/fastrand"

	"freeproxy/internal/shared/logger"
	"freeproxy/internal/shared/types"
	"freeproxy/proxypool/model"
	"freeproxy/proxypool/scraper"
	"freeproxy/proxypool/validator"
)

// 过滤无结果时，每个过滤键打印的样本值数量
const filterSampleSize = 3

// State 是管理器的生命周期状态。
type State int32

const (
	StateEmpty      State = iota // 尚未成功加载
	StateLoaded                  // 已加载，没有进行中的验证
	StateValidating              // 验证扫描进行中
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoaded:
		return "loaded"
	case StateValidating:
		return "validating"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Manager 是代理池模块的总控制器：持有一个代理源的记录、执行过滤，并运行并发验证扫描。
//
// 同一个 Manager 不支持并发调用 Load/Acquire，调用方需要自行串行化。
// 不同 Manager 实例之间不共享任何状态。
type Manager struct {
	cfg       *types.Config
	registry  *scraper.Registry
	validator validator.Validator

	source  string
	records []model.ProxyRecord
	state   atomic.Int32
}

// NewManager 创建一个处于 Empty 状态的代理池管理器。
func NewManager(cfg *types.Config, registry *scraper.Registry, v validator.Validator) *Manager {
	return &Manager{
		cfg:       cfg,
		registry:  registry,
		validator: v,
	}
}

// State 返回当前状态。
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Source 返回最近一次成功加载的代理源键名。
func (m *Manager) Source() string {
	return m.source
}

// Records 返回当前记录序列的副本。
func (m *Manager) Records() []model.ProxyRecord {
	out := make([]model.ProxyRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Load 从 key 对应的代理源下载记录并整体替换当前序列。
// 任何失败都保留之前的记录 (全有或全无)。
func (m *Manager) Load(ctx context.Context, key string) error {
	l := logger.WithComponent("ProxyPool/Manager")

	s, err := m.registry.Lookup(key)
	if err != nil {
		return err
	}
	locator := m.cfg.Sources[key]
	if locator == "" {
		return &model.InvalidSourceError{Key: key, Valid: m.registry.Keys(), Reason: "no url configured for source"}
	}

	l.Info().Str("source", key).Msg("Downloading proxies...")
	records, err := s.Scrape(ctx, locator)
	if err != nil {
		l.Error().Err(err).Str("source", key).Msg("Failed to download proxies, keeping previous pool.")
		return err
	}
	if err := checkSchema(records); err != nil {
		l.Error().Err(err).Str("source", key).Msg("Rejected proxy list, keeping previous pool.")
		return err
	}

	if len(records) == 0 {
		l.Warn().Str("source", key).Msg("Source returned no proxies.")
	}
	m.records = records
	m.source = key
	m.state.Store(int32(StateLoaded))
	l.Info().Int("count", len(records)).Str("source", key).Msg("Proxy pool loaded.")
	return nil
}

func checkSchema(records []model.ProxyRecord) error {
	for i := 1; i < len(records); i++ {
		if !records[i].SameSchema(records[0]) {
			return fmt.Errorf("record %d has keys %v, record 0 has %v: %w", i, records[i].Keys(), records[0].Keys(), model.ErrMixedSchema)
		}
	}
	return nil
}

// FilterableKeys 返回可用于过滤的属性名 (即第一条记录的 schema)。
func (m *Manager) FilterableKeys() ([]string, error) {
	if len(m.records) == 0 {
		return nil, model.ErrEmptyPool
	}
	return m.records[0].Keys(), nil
}

// Filter 返回满足 spec 中全部条件的记录，保持原有顺序。
// spec 为空时返回全部记录；没有匹配时返回空切片并记录警告。
func (m *Manager) Filter(spec model.FilterSpec) ([]model.ProxyRecord, error) {
	l := logger.WithComponent("ProxyPool/Manager")

	if len(m.records) == 0 {
		return nil, model.ErrEmptyPool
	}
	if len(spec) == 0 {
		l.Debug().Msg("No filter passed, returning all proxies.")
		return m.Records(), nil
	}

	schema := m.records[0]
	var invalid []string
	for _, k := range spec.Keys() {
		if _, ok := schema.Get(k); !ok {
			invalid = append(invalid, k)
		}
	}
	if len(invalid) > 0 {
		err := &model.InvalidFilterError{Invalid: invalid, Valid: schema.Keys()}
		l.Error().Err(err).Msg("Invalid filter.")
		return nil, err
	}

	results := make([]model.ProxyRecord, 0)
	for _, r := range m.records {
		if spec.Matches(r) {
			results = append(results, r)
		}
	}

	if len(results) == 0 {
		l.Warn().Interface("filter", spec).Msg("Filter returned no results, returning empty list.")
		m.logFilterSamples(spec)
	}
	l.Debug().Interface("filter", spec).Int("count", len(results)).Msg("Filter applied.")
	return results, nil
}

// logFilterSamples 为每个过滤键打印几条随机样本值，方便调用方发现拼写或取值问题。
func (m *Manager) logFilterSamples(spec model.FilterSpec) {
	l := logger.WithComponent("ProxyPool/Manager")
	size := filterSampleSize
	if len(m.records) < size {
		size = len(m.records)
	}
	sample := shuffled(m.records)[:size]
	for _, k := range spec.Keys() {
		values := make([]string, 0, size)
		for _, r := range sample {
			v, _ := r.Get(k)
			values = append(values, v)
		}
		l.Warn().Str("key", k).Strs("sample_values", values).Msg("Filter sample values.")
	}
}

// probeResult 是单次探测的结果。
type probeResult struct {
	record model.ProxyRecord
	ok     bool
}

// Acquire 返回 n 个通过存活验证的代理 ("ip:port")，顺序为验证完成的先后顺序。
//
// 候选集先经 Filter 过滤，randomize 为 true 时随机打乱。最多 maxConcurrency 个探测同时进行
// (<= 0 时使用配置的 default_concurrency)。成功数达到 n 立即返回，仍在进行的探测被取消，
// 其结果直接丢弃。候选集耗尽仍不足 n 个时返回 *model.InsufficientProxiesError。
func (m *Manager) Acquire(ctx context.Context, n int, spec model.FilterSpec, maxConcurrency int, randomize bool) ([]string, error) {
	if n < 1 {
		return nil, fmt.Errorf("n must be greater than 0, got %d: %w", n, model.ErrInvalidArgument)
	}
	if len(m.records) == 0 {
		return nil, fmt.Errorf("%w (did you forget to call Load?)", model.ErrEmptyPool)
	}

	candidates, err := m.Filter(spec)
	if err != nil {
		return nil, err
	}
	if randomize {
		candidates = shuffled(candidates)
	}
	if maxConcurrency <= 0 {
		maxConcurrency = m.cfg.DefaultConcurrency
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	m.state.Store(int32(StateValidating))
	defer m.state.Store(int32(StateLoaded))

	return m.sweep(ctx, candidates, n, maxConcurrency)
}

func (m *Manager) sweep(ctx context.Context, candidates []model.ProxyRecord, n, maxConcurrency int) ([]string, error) {
	sweepID := uuid.NewString()
	l := logger.WithComponent("ProxyPool/Manager").With().Str("sweep_id", sweepID).Logger()
	start := time.Now()
	timeout := m.cfg.ValidationTimeout

	l.Info().
		Int("requested", n).
		Int("candidates", len(candidates)).
		Int("concurrency", maxConcurrency).
		Msg("Starting validation sweep...")

	sweepCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 缓冲区足够容纳所有在途探测的结果，提前退出后工作协程不会阻塞在发送上。
	results := make(chan probeResult, maxConcurrency)
	go func() {
		p := pool.New().WithMaxGoroutines(maxConcurrency)
		for _, rec := range candidates {
			if sweepCtx.Err() != nil {
				break
			}
			p.Go(func() {
				if sweepCtx.Err() != nil {
					return
				}
				ok := m.validator.Check(sweepCtx, rec, timeout)
				select {
				case results <- probeResult{record: rec, ok: ok}:
				case <-sweepCtx.Done():
				}
			})
		}
		p.Wait()
		close(results)
	}()

	operational := make([]string, 0, n)
	checked := 0
	for res := range results {
		checked++
		if !res.ok {
			continue
		}
		operational = append(operational, model.FormatAsString(res.record))
		if len(operational) == n {
			cancel()
			l.Info().
				Strs("proxies", operational).
				Int("checked", checked).
				Int("candidates", len(candidates)).
				Dur("elapsed", time.Since(start)).
				Msg("Quota reached.")
			return operational, nil
		}
	}

	if err := ctx.Err(); err != nil {
		l.Warn().Err(err).Int("checked", checked).Msg("Validation sweep cancelled.")
		return nil, err
	}

	err := &model.InsufficientProxiesError{
		Found:      len(operational),
		Requested:  n,
		Checked:    checked,
		Candidates: len(candidates),
	}
	l.Warn().
		Int("checked", checked).
		Int("candidates", len(candidates)).
		Dur("elapsed", time.Since(start)).
		Msg(err.Error())
	return nil, err
}

// shuffled 返回 records 的一个均匀随机排列 (Fisher-Yates)，不修改入参。
func shuffled(records []model.ProxyRecord) []model.ProxyRecord {
	out := make([]model.ProxyRecord, len(records))
	copy(out, records)
	for i := len(out) - 1; i > 0; i-- {
		j := int(fastrand.Uint32n(uint32(i + 1)))
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// IsInsufficient reports whether err is an exhausted-search error.
func IsInsufficient(err error) bool {
	var ie *model.InsufficientProxiesError
	return errors.As(err, &ie)
}
