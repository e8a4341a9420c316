package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/rally/internal/adapters/http/api"
	"github.com/okian/rally/internal/adapters/repository"
	"github.com/okian/rally/internal/domain/types"
)

func newTestServer(t *testing.T) (*httptest.Server, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore(context.Background(), repository.WithMetricsUpdateInterval(time.Hour))
	srv := httptest.NewServer(api.NewServer(store).Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = store.Close()
	})
	return srv, store
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func read[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestSessionRoutes(t *testing.T) {
	Convey("Given a running session API", t, func() {
		srv, _ := newTestServer(t)

		resp := do(t, http.MethodPost, srv.URL+"/v1/sessions", types.SessionMeta{Name: "tuesday", WinningScore: 11, Games: []int{2, 1}})
		So(resp.StatusCode, ShouldEqual, http.StatusCreated)
		created := read[types.Created](t, resp)
		base := srv.URL + "/v1/sessions/" + created.ShareCode

		Convey("Then the create response should carry both identifiers", func() {
			So(created.SessionID, ShouldNotBeEmpty)
			So(created.ShareCode, ShouldHaveLength, 6)
		})

		Convey("When a score is upserted and another device polls", func() {
			resp := do(t, http.MethodPut, base+"/scores", types.ScoreUpsert{SessionID: created.SessionID, ClientID: "dev-1", Round: 1, Game: 0, S1: "11", S2: "9"})
			So(resp.StatusCode, ShouldEqual, http.StatusAccepted)
			resp.Body.Close()

			poll := do(t, http.MethodGet, base+"/updates?since=0&client_id=dev-2", nil)
			So(poll.StatusCode, ShouldEqual, http.StatusOK)
			res := read[types.PollResult](t, poll)

			Convey("Then the update should be visible with a store timestamp", func() {
				So(res.Updates, ShouldHaveLength, 1)
				So(res.Updates[0].Round, ShouldEqual, 1)
				So(res.Updates[0].S2, ShouldEqual, "9")
				So(res.LatestTimestamp, ShouldEqual, res.Updates[0].UpdatedAt)
				So(res.ConnectedCount, ShouldEqual, 2)
				So(res.Status, ShouldEqual, types.StatusActive)
			})

			Convey("Then a joiner should receive the full score set", func() {
				resp := do(t, http.MethodPost, base+"/join", api.JoinRequest{ClientID: "dev-3"})
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				joined := read[types.Joined](t, resp)
				So(joined.SessionID, ShouldEqual, created.SessionID)
				So(joined.Meta.Name, ShouldEqual, "tuesday")
				So(joined.Scores, ShouldHaveLength, 1)
			})
		})

		Convey("When the session is finished", func() {
			resp := do(t, http.MethodPost, base+"/finish", api.FinishRequest{SessionID: created.SessionID})
			So(resp.StatusCode, ShouldEqual, http.StatusNoContent)
			resp.Body.Close()

			Convey("Then further upserts should conflict", func() {
				resp := do(t, http.MethodPut, base+"/scores", types.ScoreUpsert{S1: "3"})
				So(resp.StatusCode, ShouldEqual, http.StatusConflict)
				body := read[api.ErrorResponse](t, resp)
				So(body.Code, ShouldEqual, api.CodeFinished)
			})

			Convey("Then polls should report the finished status", func() {
				res := read[types.PollResult](t, do(t, http.MethodGet, base+"/updates", nil))
				So(res.Finished(), ShouldBeTrue)
			})
		})

		Convey("When requests are malformed", func() {
			cases := []struct {
				method, path string
				body         any
				status       int
				code         string
			}{
				{http.MethodPost, "/v1/sessions/NOPE99/join", api.JoinRequest{ClientID: "x"}, http.StatusNotFound, api.CodeNotFound},
				{http.MethodPost, "/v1/sessions/" + created.ShareCode + "/join", api.JoinRequest{}, http.StatusBadRequest, api.CodeBadRequest},
				{http.MethodPost, "/v1/sessions", "{not json", http.StatusBadRequest, api.CodeBadRequest},
				{http.MethodGet, "/v1/sessions/" + created.ShareCode + "/updates?since=abc", nil, http.StatusBadRequest, api.CodeBadRequest},
				{http.MethodPut, "/v1/sessions/" + created.ShareCode + "/scores", types.ScoreUpsert{Round: 7}, http.StatusBadRequest, api.CodeInvalidScore},
				{http.MethodPut, "/v1/sessions/" + created.ShareCode + "/scores", types.ScoreUpsert{SessionID: "other"}, http.StatusConflict, api.CodeSessionMismatch},
				{http.MethodGet, "/v1/nothing", nil, http.StatusNotFound, api.CodeNotFound},
			}

			Convey("Then each should map to a JSON error", func() {
				for _, c := range cases {
					resp := do(t, c.method, srv.URL+c.path, c.body)
					So(resp.StatusCode, ShouldEqual, c.status)
					So(resp.Header.Get("Content-Type"), ShouldStartWith, "application/json")
					body := read[api.ErrorResponse](t, resp)
					So(body.Code, ShouldEqual, c.code)
					So(body.Message, ShouldNotBeEmpty)
				}
			})
		})
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given a running session API with some activity", t, func() {
		srv, store := newTestServer(t)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			_, err := store.CreateSession(ctx, types.SessionMeta{Name: fmt.Sprintf("s%d", i)})
			So(err, ShouldBeNil)
		}

		Convey("When stats are requested", func() {
			resp := do(t, http.MethodGet, srv.URL+"/stats", nil)

			Convey("Then the store counters should be returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				st := read[types.Stats](t, resp)
				So(st.Sessions, ShouldEqual, 3)
				So(st.ActiveSessions, ShouldEqual, 3)
			})
		})

		Convey("When health is requested", func() {
			resp := do(t, http.MethodGet, srv.URL+"/healthz", nil)
			defer resp.Body.Close()
			var buf bytes.Buffer
			_, _ = buf.ReadFrom(resp.Body)

			Convey("Then it should serve the metrics exposition", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(strings.Contains(buf.String(), "rally_"), ShouldBeTrue)
			})
		})
	})
}
