package id

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNormalize(t *testing.T) {
	Convey("Normalize", t, func() {
		Convey("新生成的 id 保持不变", func() {
			v := New()
			got, ok := Normalize(v)
			So(ok, ShouldBeTrue)
			So(got, ShouldEqual, v)
		})

		Convey("大写与首尾空白被规范化", func() {
			got, ok := Normalize("  3F2504E0-4F89-11D3-9A0C-0305E82C3301 ")
			So(ok, ShouldBeTrue)
			So(got, ShouldEqual, "3f2504e0-4f89-11d3-9a0c-0305e82c3301")
		})

		Convey("非法格式被拒绝", func() {
			for _, raw := range []string{"", "   ", "not-a-uuid", "12345"} {
				_, ok := Normalize(raw)
				So(ok, ShouldBeFalse)
			}
			So(IsValid("nope"), ShouldBeFalse)
		})
	})
}
