package mathtools

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
)

// ErrInvalidExpression 表达式无法求值
var ErrInvalidExpression = errors.New("invalid expression")

// equalityTolerance 相对误差容限，吸收 1/3 与 0.333... 之类的浮点差异
const equalityTolerance = 1e-9

// ValidationResult 数值答案比对结果
type ValidationResult struct {
	OK       bool     `json:"ok"`
	User     *float64 `json:"user,omitempty"`
	Expected *float64 `json:"expected,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// 形如 "x = 3" 的简单代数写法只取右侧
var assignmentPattern = regexp.MustCompile(`^\s*[A-Za-z][A-Za-z0-9_]*\s*=\s*([^=].*)$`)

var symbolReplacer = strings.NewReplacer(
	"−", "-",
	"×", "*",
	"·", "*",
	"÷", "/",
	"√", "sqrt",
	"π", "pi",
)

func mathEnv() map[string]any {
	return map[string]any{
		"pi":    math.Pi,
		"e":     math.E,
		"sqrt":  math.Sqrt,
		"cbrt":  math.Cbrt,
		"ln":    math.Log,
		"log10": math.Log10,
	}
}

// EvaluateExpression 计算算术表达式的数值
// 支持 + - * / ^ 括号、小数、分数以及 sqrt/abs/pi/e 等常用符号
func EvaluateExpression(input string) (float64, error) {
	s := symbolReplacer.Replace(strings.TrimSpace(input))
	if m := assignmentPattern.FindStringSubmatch(s); len(m) > 1 {
		s = m[1]
	}
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidExpression)
	}

	env := mathEnv()
	program, err := expr.Compile(s, expr.Env(env))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	v, ok := toFloat(out)
	if !ok {
		return 0, fmt.Errorf("%w: result is not a number", ErrInvalidExpression)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: result is not finite", ErrInvalidExpression)
	}
	return v, nil
}

// ValidateNumericAnswer 判断两个表达式是否表示同一个数值
// 求值失败不会返回 error，而是 OK=false 并附带错误标记
func ValidateNumericAnswer(userExpr, expectedExpr string) *ValidationResult {
	user, err := EvaluateExpression(userExpr)
	if err != nil {
		return &ValidationResult{OK: false, Error: "Invalid expression"}
	}
	expected, err := EvaluateExpression(expectedExpr)
	if err != nil {
		return &ValidationResult{OK: false, Error: "Invalid expression"}
	}

	return &ValidationResult{
		OK:       nearlyEqual(user, expected),
		User:     &user,
		Expected: &expected,
	}
}

func nearlyEqual(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= equalityTolerance*scale
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
