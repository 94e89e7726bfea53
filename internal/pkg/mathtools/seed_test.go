package mathtools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"tutor/internal/config"
	"tutor/internal/pkg/cache"
)

const seedDataset = `[
  {"topic": "ecuaciones_lineales", "difficulty": "baja", "statement": "x + 2 = 5", "answer": "3"},
  {"topic": "ecuaciones_lineales", "difficulty": "alta", "statement": "3(x-2) + 4 = 2x + 7", "answer": "9"},
  {"topic": "ecuaciones_lineales", "difficulty": "alta", "statement": "5x - 3 = 2x + 9", "answer": "4"},
  {"topic": "ecuaciones_lineales", "difficulty": "alta", "statement": "2(x+1) = x + 10", "answer": "8"},
  {"topic": "fracciones", "difficulty": "alta", "statement": "1/2 + 1/3", "answer": "5/6"}
]`

func newSeedServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if r.Header.Get("Accept") != "application/vnd.github.v3.raw" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.URL.Path != "/repos/acme/math-seed/contents/dataset/seed.json" || r.URL.Query().Get("ref") != "main" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func seedConfig(baseURL string) *config.SeedConfig {
	return &config.SeedConfig{
		Owner:      "acme",
		Repo:       "math-seed",
		Path:       "dataset/seed.json",
		Branch:     "main",
		APIBaseURL: baseURL,
		Timeout:    2 * time.Second,
		CacheTTL:   time.Minute,
	}
}

func noShuffle(int, func(i, j int)) {}

type memCache struct {
	data map[string][]byte
}

func (m *memCache) Get(_ context.Context, key string, dest any) error {
	raw, ok := m.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func TestSeedFetcher(t *testing.T) {
	Convey("SeedFetcher", t, func() {
		ctx := context.Background()

		Convey("坐标缺失时是配置错误", func() {
			_, err := NewSeedFetcher(&config.SeedConfig{Owner: "acme"})
			So(errors.Is(err, ErrSeedConfig), ShouldBeTrue)
		})

		Convey("按主题与难度过滤并返回固定引用地址", func() {
			srv := newSeedServer(t, http.StatusOK, seedDataset, nil)
			f, err := NewSeedFetcher(seedConfig(srv.URL), WithShuffle(noShuffle))
			So(err, ShouldBeNil)

			res, err := f.Fetch(ctx, &SeedQuery{Topic: "ecuaciones_lineales", Difficulty: "baja"})
			So(err, ShouldBeNil)
			So(res.Examples, ShouldHaveLength, 1)
			So(res.Examples[0].Answer, ShouldEqual, "3")
			So(res.SourceURL, ShouldEqual, "https://github.com/acme/math-seed/blob/main/dataset/seed.json")
		})

		Convey("排除题干、答案与组合", func() {
			srv := newSeedServer(t, http.StatusOK, seedDataset, nil)
			f, _ := NewSeedFetcher(seedConfig(srv.URL), WithShuffle(noShuffle))

			res, err := f.Fetch(ctx, &SeedQuery{
				Topic:             "ecuaciones_lineales",
				Difficulty:        "alta",
				ExcludeStatements: []string{"3(x-2) + 4 = 2x + 7"},
				ExcludeAnswers:    []string{"4"},
			})
			So(err, ShouldBeNil)
			So(res.Examples, ShouldHaveLength, 1)
			So(res.Examples[0].Statement, ShouldEqual, "2(x+1) = x + 10")

			res, err = f.Fetch(ctx, &SeedQuery{
				Difficulty:   "alta",
				ExcludePairs: []SeedPair{{Statement: "1/2 + 1/3", Answer: "5/6"}},
			})
			So(err, ShouldBeNil)
			So(res.Examples, ShouldHaveLength, 3)
		})

		Convey("抽样大小截断结果，引用地址不受影响", func() {
			srv := newSeedServer(t, http.StatusOK, seedDataset, nil)
			f, _ := NewSeedFetcher(seedConfig(srv.URL))

			res, err := f.Fetch(ctx, &SeedQuery{SampleSize: 2})
			So(err, ShouldBeNil)
			So(res.Examples, ShouldHaveLength, 2)

			res, err = f.Fetch(ctx, &SeedQuery{Topic: "inexistente", SampleSize: 3})
			So(err, ShouldBeNil)
			So(res.Examples, ShouldBeEmpty)
			So(res.SourceURL, ShouldEqual, f.SourceURL())
		})

		Convey("429 与 403 识别为限流", func() {
			for _, status := range []int{http.StatusTooManyRequests, http.StatusForbidden} {
				srv := newSeedServer(t, status, `{"message":"rate limited"}`, nil)
				f, _ := NewSeedFetcher(seedConfig(srv.URL))

				_, err := f.Fetch(ctx, nil)
				So(errors.Is(err, ErrSeedRateLimit), ShouldBeTrue)
				So(errors.Is(err, ErrSeedFetch), ShouldBeFalse)
			}
		})

		Convey("其他非 2xx 是普通抓取错误", func() {
			srv := newSeedServer(t, http.StatusInternalServerError, "boom", nil)
			f, _ := NewSeedFetcher(seedConfig(srv.URL))

			_, err := f.Fetch(ctx, nil)
			So(errors.Is(err, ErrSeedFetch), ShouldBeTrue)
		})

		Convey("形状不对是格式错误", func() {
			bodies := []string{
				`{"not": "an array"}`,
				`[{"topic": "t", "difficulty": "d", "statement": "s"}]`,
				`[{"topic": "t", "difficulty": "d", "statement": "s", "answer": 3}]`,
				`null`,
			}
			for _, body := range bodies {
				srv := newSeedServer(t, http.StatusOK, body, nil)
				f, _ := NewSeedFetcher(seedConfig(srv.URL))

				_, err := f.Fetch(ctx, nil)
				So(errors.Is(err, ErrSeedFormat), ShouldBeTrue)
			}
		})

		Convey("超时是可区分的超时错误", func() {
			slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			}))
			defer slow.Close()

			f, _ := NewSeedFetcher(seedConfig(slow.URL))
			_, err := f.Fetch(ctx, &SeedQuery{Timeout: 50 * time.Millisecond})
			So(errors.Is(err, ErrSeedTimeout), ShouldBeTrue)
		})

		Convey("启用缓存后只请求一次远端", func() {
			var hits int32
			srv := newSeedServer(t, http.StatusOK, seedDataset, &hits)
			f, _ := NewSeedFetcher(seedConfig(srv.URL), WithDatasetCache(&memCache{data: map[string][]byte{}}))

			for i := 0; i < 3; i++ {
				res, err := f.Fetch(ctx, &SeedQuery{Topic: "fracciones"})
				So(err, ShouldBeNil)
				So(res.Examples, ShouldHaveLength, 1)
			}
			So(atomic.LoadInt32(&hits), ShouldEqual, 1)
		})
	})
}
