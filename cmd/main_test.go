package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/rally/internal/config"
	"github.com/okian/rally/pkg/logger"
)

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the store server wiring", t, func() {
		ctx := context.Background()
		cfg := config.New()
		store := newStore(ctx, cfg, logger.Nop())
		defer func() { _ = store.Close() }()
		srv := httptest.NewServer(newHandler(store, logger.Nop()))
		defer srv.Close()

		convey.Convey("When a session is created over HTTP", func() {
			resp, err := http.Post(srv.URL+"/v1/sessions", "application/json", strings.NewReader(`{"name":"smoke","games":[1]}`))
			convey.So(err, convey.ShouldBeNil)
			resp.Body.Close()

			convey.Convey("Then the store should hold it", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusCreated)
				convey.So(store.Count(ctx), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When health is checked", func() {
			resp, err := http.Get(srv.URL + "/healthz")
			convey.So(err, convey.ShouldBeNil)
			resp.Body.Close()

			convey.Convey("Then it should be up", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			})
		})

		convey.Convey("When the API document is requested", func() {
			resp, err := http.Get(srv.URL + "/openapi.yaml")
			convey.So(err, convey.ShouldBeNil)
			resp.Body.Close()

			convey.Convey("Then it should be served next to the API", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a config listening on an ephemeral port", t, func() {
		cfg := config.New()
		cfg.Addr = "127.0.0.1:0"
		cfg.LogLevel = "loud"

		convey.Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			err := run(ctx, cfg, logger.Nop())

			convey.Convey("Then the server should stop cleanly", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given an address already in use", t, func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		convey.So(err, convey.ShouldBeNil)
		defer ln.Close()
		cfg := config.New()
		cfg.Addr = ln.Addr().String()

		convey.Convey("Then run should report the listen failure", func() {
			err := run(context.Background(), cfg, logger.Nop())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing system metrics updater", func() {
			convey.Convey("Then it should stop with its context", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startSystemMetricsUpdater(ctx)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing system metrics update", func() {
			convey.Convey("Then it should update metrics without panicking", func() {
				convey.So(func() {
					updateSystemMetrics()
				}, convey.ShouldNotPanic)
			})
		})
	})
}
