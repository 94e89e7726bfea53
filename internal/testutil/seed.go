package testutil

import (
	"context"
	"sync"

	"tutor/internal/pkg/mathtools"
)

// StubSeedSource 种子题库桩：对内置数据集执行真实的过滤逻辑，不抽样打乱
type StubSeedSource struct {
	mu        sync.Mutex
	Dataset   []mathtools.SeedExample
	SourceURL string
	Err       error
	Queries   []mathtools.SeedQuery
}

// NewStubSeedSource 创建桩
func NewStubSeedSource(sourceURL string, dataset ...mathtools.SeedExample) *StubSeedSource {
	return &StubSeedSource{Dataset: dataset, SourceURL: sourceURL}
}

// Fetch 实现 service.SeedSource
func (s *StubSeedSource) Fetch(_ context.Context, q *mathtools.SeedQuery) (*mathtools.SeedResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Queries = append(s.Queries, *q)
	if s.Err != nil {
		return nil, s.Err
	}
	examples := mathtools.FilterSeedExamples(s.Dataset, q)
	if q.SampleSize > 0 && len(examples) > q.SampleSize {
		examples = examples[:q.SampleSize]
	}
	return &mathtools.SeedResult{Examples: examples, SourceURL: s.SourceURL}, nil
}
