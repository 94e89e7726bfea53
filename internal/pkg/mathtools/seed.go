package mathtools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"tutor/internal/config"
	"tutor/internal/pkg/cache"
)

var (
	ErrSeedConfig    = errors.New("seed source is not configured")
	ErrSeedRateLimit = errors.New("seed source rate limited")
	ErrSeedFetch     = errors.New("seed source fetch error")
	ErrSeedTimeout   = errors.New("seed source timeout")
	ErrSeedFormat    = errors.New("seed dataset invalid format")
)

const (
	defaultSeedTimeout = 10 * time.Second
	defaultAPIBaseURL  = "https://api.github.com"
	defaultBranch      = "main"
	maxDatasetBytes    = 5 << 20
)

// SeedExample 种子题库中的一条示例
type SeedExample struct {
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"`
	Statement  string `json:"statement"`
	Answer     string `json:"answer"`
}

// SeedPair 按 题干+答案 组合排除
type SeedPair struct {
	Statement string
	Answer    string
}

// SeedQuery 一次抓取的过滤与抽样参数，零值表示不过滤、不抽样
type SeedQuery struct {
	Topic             string
	Difficulty        string
	ExcludeStatements []string
	ExcludeAnswers    []string
	ExcludePairs      []SeedPair
	SampleSize        int
	Timeout           time.Duration
}

// SeedResult 抓取结果，SourceURL 与过滤结果无关
type SeedResult struct {
	Examples  []SeedExample `json:"examples"`
	SourceURL string        `json:"sourceUrl"`
}

// DatasetCache 原始题库内容的缓存，*cache.RedisCache 满足该接口
type DatasetCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// SeedFetcher 从 GitHub contents API 读取种子题库
type SeedFetcher struct {
	cfg        config.SeedConfig
	httpClient *http.Client
	cache      DatasetCache
	shuffle    func(n int, swap func(i, j int))
}

// SeedOption 可选配置
type SeedOption func(*SeedFetcher)

// WithHTTPClient 替换 HTTP 客户端
func WithHTTPClient(c *http.Client) SeedOption {
	return func(f *SeedFetcher) { f.httpClient = c }
}

// WithDatasetCache 启用题库缓存，ttl 取 SeedConfig.CacheTTL
func WithDatasetCache(c DatasetCache) SeedOption {
	return func(f *SeedFetcher) { f.cache = c }
}

// WithShuffle 替换洗牌函数，测试中用于固定顺序
func WithShuffle(shuffle func(n int, swap func(i, j int))) SeedOption {
	return func(f *SeedFetcher) { f.shuffle = shuffle }
}

// NewSeedFetcher 创建抓取器，仓库坐标不完整时返回 ErrSeedConfig
func NewSeedFetcher(cfg *config.SeedConfig, opts ...SeedOption) (*SeedFetcher, error) {
	if cfg == nil || cfg.Validate() != nil {
		return nil, ErrSeedConfig
	}

	f := &SeedFetcher{
		cfg:        *cfg,
		httpClient: &http.Client{},
		shuffle:    rand.Shuffle,
	}
	if f.cfg.Branch == "" {
		f.cfg.Branch = defaultBranch
	}
	if f.cfg.APIBaseURL == "" {
		f.cfg.APIBaseURL = defaultAPIBaseURL
	}
	if f.cfg.Timeout <= 0 {
		f.cfg.Timeout = defaultSeedTimeout
	}
	f.cfg.Path = strings.TrimPrefix(f.cfg.Path, "/")

	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// SourceURL 题库在 GitHub 上可浏览的地址
func (f *SeedFetcher) SourceURL() string {
	return fmt.Sprintf("https://github.com/%s/%s/blob/%s/%s", f.cfg.Owner, f.cfg.Repo, f.cfg.Branch, f.cfg.Path)
}

func (f *SeedFetcher) contentsURL() string {
	segments := strings.Split(f.cfg.Path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		strings.TrimSuffix(f.cfg.APIBaseURL, "/"),
		url.PathEscape(f.cfg.Owner), url.PathEscape(f.cfg.Repo),
		strings.Join(segments, "/"), url.QueryEscape(f.cfg.Branch))
}

// Fetch 读取题库，依次按主题、难度、题干、答案、题干+答案过滤，再随机抽样
// 失败不在内部重试
func (f *SeedFetcher) Fetch(ctx context.Context, q *SeedQuery) (*SeedResult, error) {
	if q == nil {
		q = &SeedQuery{}
	}

	dataset, err := f.loadDataset(ctx, q.Timeout)
	if err != nil {
		return nil, err
	}

	examples := FilterSeedExamples(dataset, q)
	if q.SampleSize > 0 && len(examples) > 0 {
		f.shuffle(len(examples), func(i, j int) { examples[i], examples[j] = examples[j], examples[i] })
		if len(examples) > q.SampleSize {
			examples = examples[:q.SampleSize]
		}
	}

	return &SeedResult{Examples: examples, SourceURL: f.SourceURL()}, nil
}

// FilterSeedExamples 应用主题、难度以及三种排除过滤，返回新切片
func FilterSeedExamples(dataset []SeedExample, q *SeedQuery) []SeedExample {
	statements := toSet(q.ExcludeStatements)
	answers := toSet(q.ExcludeAnswers)
	pairs := make(map[SeedPair]struct{}, len(q.ExcludePairs))
	for _, p := range q.ExcludePairs {
		pairs[p] = struct{}{}
	}

	out := make([]SeedExample, 0, len(dataset))
	for _, e := range dataset {
		if q.Topic != "" && e.Topic != q.Topic {
			continue
		}
		if q.Difficulty != "" && e.Difficulty != q.Difficulty {
			continue
		}
		if _, ok := statements[e.Statement]; ok {
			continue
		}
		if _, ok := answers[e.Answer]; ok {
			continue
		}
		if _, ok := pairs[SeedPair{Statement: e.Statement, Answer: e.Answer}]; ok {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (f *SeedFetcher) loadDataset(ctx context.Context, timeout time.Duration) ([]SeedExample, error) {
	key := cache.SeedDatasetCacheKey(f.cfg.Owner, f.cfg.Repo, f.cfg.Branch, f.cfg.Path)
	if f.cache != nil {
		var cached []SeedExample
		if err := f.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			log.Debug().Err(err).Str("key", key).Msg("seed dataset cache read failed")
		}
	}

	body, err := f.download(ctx, timeout)
	if err != nil {
		return nil, err
	}
	dataset, err := ParseSeedDataset(body)
	if err != nil {
		return nil, err
	}

	if f.cache != nil && f.cfg.CacheTTL > 0 {
		if err := f.cache.Set(ctx, key, dataset, f.cfg.CacheTTL); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("seed dataset cache write failed")
		}
	}
	return dataset, nil
}

func (f *SeedFetcher) download(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = f.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.contentsURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSeedFetch, err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3.raw")
	if f.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.cfg.Token)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w after %s", ErrSeedTimeout, timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrSeedFetch, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", ErrSeedRateLimit, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: status %d", ErrSeedFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDatasetBytes))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w after %s", ErrSeedTimeout, timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrSeedFetch, err)
	}
	return body, nil
}

type seedExampleShape struct {
	Topic      *string `json:"topic"`
	Difficulty *string `json:"difficulty"`
	Statement  *string `json:"statement"`
	Answer     *string `json:"answer"`
}

// ParseSeedDataset 校验题库形状：对象数组，每项的四个字段都必须是字符串
func ParseSeedDataset(body []byte) ([]SeedExample, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSeedFormat, err)
	}
	if items == nil {
		return nil, fmt.Errorf("%w: dataset is null", ErrSeedFormat)
	}

	out := make([]SeedExample, 0, len(items))
	for i, raw := range items {
		var shape seedExampleShape
		if err := json.Unmarshal(raw, &shape); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrSeedFormat, i, err)
		}
		if shape.Topic == nil || shape.Difficulty == nil || shape.Statement == nil || shape.Answer == nil {
			return nil, fmt.Errorf("%w: item %d is missing fields", ErrSeedFormat, i)
		}
		out = append(out, SeedExample{
			Topic:      *shape.Topic,
			Difficulty: *shape.Difficulty,
			Statement:  *shape.Statement,
			Answer:     *shape.Answer,
		})
	}
	return out, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
