package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	goopenai "github.com/meguminnnnnnnnn/go-openai"
	"github.com/rs/zerolog/log"
)

// ErrRetryExhausted 可重试错误在重试预算内没有恢复
var ErrRetryExhausted = errors.New("llm retry budget exhausted")

const defaultRetryBackoff = 500 * time.Millisecond

// StatusError 带 HTTP 状态码的上游错误
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm upstream status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// ark 等不走 go-openai 的客户端只在错误文本里带 "status code: 429"
var statusCodePattern = regexp.MustCompile(`status code: (\d{3})`)

// StatusCode 从错误中提取上游 HTTP 状态码，取不到时返回 0
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return apiErr.HTTPStatusCode
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return reqErr.HTTPStatusCode
	}
	if m := statusCodePattern.FindStringSubmatch(err.Error()); len(m) > 1 {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}

// IsRetryable 限流、5xx 与超时可以重试，其余错误直接失败
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	code := StatusCode(err)
	return code == 429 || code >= 500
}

// RetryClient 为 LLMClient 增加有界的指数退避重试
type RetryClient struct {
	next           LLMClient
	maxRetries     int
	initialBackoff time.Duration
}

// NewRetryClient maxRetries 为首次调用之外的重试次数
func NewRetryClient(next LLMClient, maxRetries int, initialBackoff time.Duration) *RetryClient {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if initialBackoff <= 0 {
		initialBackoff = defaultRetryBackoff
	}
	return &RetryClient{next: next, maxRetries: maxRetries, initialBackoff: initialBackoff}
}

// Complete 调用下游，可重试错误用尽预算后包装为 ErrRetryExhausted
func (c *RetryClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(c.initialBackoff),
				backoff.WithMultiplier(2),
				backoff.WithRandomizationFactor(0.2),
			),
			uint64(c.maxRetries),
		),
		ctx,
	)

	attempts := 0
	resp, err := backoff.RetryNotifyWithData(func() (*Response, error) {
		attempts++
		resp, err := c.next.Complete(ctx, req)
		if err != nil && !IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return resp, err
	}, policy, func(err error, wait time.Duration) {
		log.Warn().Err(err).Int("attempt", attempts).Dur("backoff", wait).Msg("llm call failed, retrying")
	})
	if err != nil {
		if IsRetryable(err) {
			return nil, fmt.Errorf("%w after %d attempt(s): %w", ErrRetryExhausted, attempts, err)
		}
		return nil, err
	}
	return resp, nil
}
