package mathtools

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestValidateNumericAnswer(t *testing.T) {
	Convey("ValidateNumericAnswer", t, func() {
		Convey("等值表达式", func() {
			res := ValidateNumericAnswer("2+2", "4")
			So(res.OK, ShouldBeTrue)
			So(*res.User, ShouldEqual, 4)
			So(*res.Expected, ShouldEqual, 4)
			So(res.Error, ShouldBeEmpty)
		})

		Convey("语法错误返回错误标记而不是 panic", func() {
			res := ValidateNumericAnswer("2+", "4")
			So(res.OK, ShouldBeFalse)
			So(res.Error, ShouldNotBeEmpty)
			So(res.User, ShouldBeNil)
		})

		Convey("未知符号", func() {
			res := ValidateNumericAnswer("4", "y + 1")
			So(res.OK, ShouldBeFalse)
			So(res.Error, ShouldNotBeEmpty)
		})

		Convey("数值不同时返回两个值", func() {
			res := ValidateNumericAnswer("5", "6")
			So(res.OK, ShouldBeFalse)
			So(res.Error, ShouldBeEmpty)
			So(*res.User, ShouldEqual, 5)
			So(*res.Expected, ShouldEqual, 6)
		})
	})
}

func TestEquivalentForms(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		expected string
		ok       bool
	}{
		{"fraction vs decimal", "1/2", "0.5", true},
		{"repeating decimal", "1/3", "0.3333333333", true},
		{"power", "2^3", "8", true},
		{"sqrt", "sqrt(16)", "4", true},
		{"abs", "abs(-3)", "3", true},
		{"assignment form", "x = 3", "3", true},
		{"negative fraction", "-7/2", "-3.5", true},
		{"unicode minus", "−2", "-2", true},
		{"parentheses", "(2+3)*4", "20", true},
		{"different", "3", "-3", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateNumericAnswer(tt.user, tt.expected)
			if res.Error != "" {
				t.Fatalf("unexpected error for %q vs %q: %s", tt.user, tt.expected, res.Error)
			}
			if res.OK != tt.ok {
				t.Errorf("ValidateNumericAnswer(%q, %q).OK = %v, want %v", tt.user, tt.expected, res.OK, tt.ok)
			}
		})
	}
}

func TestEvaluateExpressionRejects(t *testing.T) {
	for _, in := range []string{"", "   ", "1/0", `"abc"`, "2 +* 3", "x == 3"} {
		t.Run(in, func(t *testing.T) {
			if _, err := EvaluateExpression(in); err == nil {
				t.Errorf("EvaluateExpression(%q) should fail", in)
			}
		})
	}
}
