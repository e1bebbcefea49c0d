package stats_test

import (
	"testing"
	"time"

	"github.com/mcdev12/typerace/go/internal/stats"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCompute(t *testing.T) {
	Convey("Given the typing stats engine", t, func() {
		Convey("When the typed text matches the sentence exactly after one minute", func() {
			s := "the quick brown fox"
			result := stats.Compute(s, s, 60*time.Second)

			Convey("Then every character is correct and WPM is len/5", func() {
				So(result.CorrectChars, ShouldEqual, len(s))
				So(result.Accuracy, ShouldEqual, 1.0)
				So(result.WPM, ShouldAlmostEqual, float64(len(s))/5.0, 1e-9)
			})
		})

		Convey("When nothing has been typed", func() {
			result := stats.Compute("", "hello", 60*time.Second)

			Convey("Then everything is zero", func() {
				So(result.CorrectChars, ShouldEqual, 0)
				So(result.Accuracy, ShouldEqual, 0.0)
				So(result.WPM, ShouldEqual, 0.0)
			})
		})

		Convey("When one character is wrong", func() {
			result := stats.Compute("hxllo", "hello", 60*time.Second)

			Convey("Then correctness, accuracy and WPM reflect 4 of 5 characters", func() {
				So(result.CorrectChars, ShouldEqual, 4)
				So(result.Accuracy, ShouldAlmostEqual, 0.8, 1e-9)
				So(result.WPM, ShouldAlmostEqual, 0.8, 1e-9)
			})
		})

		Convey("When a single inserted character misaligns the rest", func() {
			// "xhello" truncates to "xhell" and shifts every position: only
			// positions that happen to collide score, here just index 3
			// ('l' against 'l').
			result := stats.Compute("xhello", "hello", 60*time.Second)

			So(result.CorrectChars, ShouldEqual, 1)
			So(result.Accuracy, ShouldAlmostEqual, 0.2, 1e-9)
		})

		Convey("When typed input is longer than the sentence", func() {
			result := stats.Compute("hellohellohello", "hello", 60*time.Second)

			Convey("Then input is truncated and cannot score above the sentence", func() {
				So(result.CorrectChars, ShouldEqual, 5)
				So(result.Accuracy, ShouldEqual, 1.0)
			})
		})

		Convey("When less than one second has elapsed", func() {
			result := stats.Compute("hello", "hello", 500*time.Millisecond)

			Convey("Then WPM clamps to zero but correctness does not", func() {
				So(result.WPM, ShouldEqual, 0.0)
				So(result.CorrectChars, ShouldEqual, 5)
			})
		})

		Convey("When the sentence is empty", func() {
			result := stats.Compute("anything", "", 60*time.Second)

			So(result.CorrectChars, ShouldEqual, 0)
			So(result.Accuracy, ShouldEqual, 0.0)
			So(result.WPM, ShouldEqual, 0.0)
		})

		Convey("When the sentence contains multi-byte runes", func() {
			result := stats.Compute("héllo", "héllo", 60*time.Second)

			Convey("Then comparison is per rune, not per byte", func() {
				So(result.CorrectChars, ShouldEqual, 5)
				So(result.Accuracy, ShouldEqual, 1.0)
			})
		})

		Convey("When checking the bounds invariant over assorted inputs", func() {
			cases := []struct{ typed, sentence string }{
				{"", ""},
				{"a", ""},
				{"", "abc"},
				{"abc", "abc"},
				{"abcdef", "abc"},
				{"zzz", "abc"},
				{"ab", "abcd"},
			}
			for _, c := range cases {
				result := stats.Compute(c.typed, c.sentence, 30*time.Second)
				So(result.CorrectChars, ShouldBeGreaterThanOrEqualTo, 0)
				So(result.CorrectChars, ShouldBeLessThanOrEqualTo, len([]rune(c.sentence)))
				So(result.Accuracy, ShouldBeGreaterThanOrEqualTo, 0.0)
				So(result.Accuracy, ShouldBeLessThanOrEqualTo, 1.0)
				So(result.WPM, ShouldBeGreaterThanOrEqualTo, 0.0)
			}
		})

		Convey("When the same input is computed twice", func() {
			a := stats.Compute("hxllo wyrld", "hello world", 42*time.Second)
			b := stats.Compute("hxllo wyrld", "hello world", 42*time.Second)

			Convey("Then the result is identical (replayable)", func() {
				So(a, ShouldResemble, b)
			})
		})
	})
}
