package service

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"tutor/internal/pkg/mathtools"
)

const (
	// MaxUserTextLength 单条用户消息的最大字符数
	MaxUserTextLength = 2000

	titleMaxRunes   = 40
	previewMaxRunes = 90
)

// collapseWhitespace 把连续空白压缩为单个空格
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes 超长时截断并以省略号结尾，结果不超过 max 个字符
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}

func conversationTitle(userText string) string {
	return truncateRunes(collapseWhitespace(userText), titleMaxRunes)
}

func textPreview(text string) string {
	return truncateRunes(collapseWhitespace(text), previewMaxRunes)
}

func exercisesPreview(resp *mathtools.ExerciseResponse) string {
	first := resp.Exercises[0]
	return truncateRunes(fmt.Sprintf("%d ejercicio(s) · %s · %s", len(resp.Exercises), first.Topic, first.Difficulty), previewMaxRunes)
}

// turnClock 为同一会话内的消息分配严格递增的毫秒时间戳
// MongoDB 只保存到毫秒，同一轮内连续写入的消息需要可区分的顺序
type turnClock struct {
	now  func() time.Time
	last time.Time
}

func newTurnClock(now func() time.Time) *turnClock {
	return &turnClock{now: now}
}

// observe 记录已有消息的时间，保证后续时间戳在其之后
func (c *turnClock) observe(t time.Time) {
	if t.After(c.last) {
		c.last = t
	}
}

func (c *turnClock) next() time.Time {
	t := c.now().UTC().Truncate(time.Millisecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return t
}
