package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		So(Init(), ShouldBeNil)
		defer func() {
			So(Sync(), ShouldBeNil)
		}()

		Convey("Then Get returns a usable logger", func() {
			l := Get()
			So(l, ShouldNotBeNil)
			l.Info(context.Background(), "test message", String("k", "v"))
		})

		Convey("And Named returns a child logger", func() {
			So(Named("test"), ShouldNotBeNil)
		})
	})
}

func TestLoggerLevels(t *testing.T) {
	Convey("Given a standalone logger at warn level", t, func() {
		var buf bytes.Buffer
		l := New(&buf, slog.LevelWarn)
		ctx := context.Background()

		Convey("When logging below the level", func() {
			l.Info(ctx, "quiet")
			l.Debug(ctx, "quieter")

			Convey("Then nothing is written", func() {
				So(buf.Len(), ShouldEqual, 0)
			})
		})

		Convey("When logging at or above the level", func() {
			l.Warn(ctx, "loud", Int("round", 2), Duration("ttl", 4*time.Second))
			l.Error(ctx, "louder", Error(errors.New("boom")))

			Convey("Then records carry message, fields and source", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "msg=loud")
				So(out, ShouldContainSubstring, "round=2")
				So(out, ShouldContainSubstring, "ttl=4s")
				So(out, ShouldContainSubstring, "error=boom")
				So(out, ShouldContainSubstring, "source=")
			})
		})

		Convey("When using With", func() {
			l.With(String("share_code", "ABC123")).Warn(ctx, "tagged")

			Convey("Then the bound field is present", func() {
				So(buf.String(), ShouldContainSubstring, "share_code=ABC123")
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		So(SetLevelString("debug"), ShouldBeNil)
		So(SetLevelString("WARNING"), ShouldBeNil)
		So(SetLevelString(""), ShouldBeNil)
		So(SetLevelString("chatty"), ShouldNotBeNil)
	})
}

func TestOrNop(t *testing.T) {
	Convey("Given a nil logger", t, func() {
		l := OrNop(nil)

		Convey("Then a usable logger is returned", func() {
			So(l, ShouldNotBeNil)
			l.Error(context.Background(), "dropped")
		})
	})
}
