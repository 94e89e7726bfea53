package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"tutor/internal/config"
	"tutor/internal/model"
	"tutor/internal/pkg/mathtools"
	"tutor/internal/service"
	"tutor/internal/testutil"
)

type fakePinger struct{ err error }

func (p *fakePinger) Ping(context.Context) error { return p.err }

type testServer struct {
	srv   *Server
	llm   *testutil.ScriptedLLM
	store *testutil.MemoryStore
	db    *fakePinger
}

func newTestServer() *testServer {
	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "test"},
		Seed:   config.SeedConfig{Owner: "acme", Repo: "math-seed", Path: "seed.json"},
		Identity: config.IdentityConfig{
			CookieName: "tutor_cid",
			MaxAge:     time.Hour,
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}

	ts := &testServer{
		llm:   testutil.NewScriptedLLM(),
		store: testutil.NewMemoryStore(),
		db:    &fakePinger{},
	}
	store := ts.store.Store()
	seeds := testutil.NewStubSeedSource("https://github.com/acme/math-seed/blob/main/seed.json",
		mathtools.SeedExample{Topic: "ecuaciones_lineales", Difficulty: "baja", Statement: "Recta por (0, 0) y (1, 1)", Answer: "y = x"})

	ts.srv = NewWithServices(cfg, &Services{
		Chat:          service.NewChatService(ts.llm, store, seeds, service.ChatOptions{Seed: cfg.Seed}),
		Conversations: service.NewConversationService(store),
		Identity:      service.NewIdentityService("test-secret", cfg.Identity.MaxAge),
		DB:            ts.db,
	})
	return ts
}

func (ts *testServer) do(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(w, req)
	return w
}

func identityCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == "tutor_cid" {
			return c
		}
	}
	return nil
}

func decode(w *httptest.ResponseRecorder, v any) {
	So(json.Unmarshal(w.Body.Bytes(), v), ShouldBeNil)
}

func TestChatRoutes(t *testing.T) {
	Convey("POST /chat", t, func() {
		ts := newTestServer()

		Convey("首次访问签发 cookie 并返回文本回复", func() {
			ts.llm.ReplyText("¡Hola!")

			w := ts.do(http.MethodPost, "/chat", map[string]string{"text": "hola"})
			So(w.Code, ShouldEqual, http.StatusOK)

			cookie := identityCookie(w)
			So(cookie, ShouldNotBeNil)
			So(cookie.HttpOnly, ShouldBeTrue)
			So(cookie.MaxAge, ShouldEqual, 3600)

			var resp model.TextChatResponse
			decode(w, &resp)
			So(resp.Text, ShouldEqual, "¡Hola!")
			So(resp.ConversationID, ShouldNotBeEmpty)
			So(resp.Meta, ShouldNotBeNil)
			So(resp.Meta.Tools, ShouldBeEmpty)

			Convey("带着 cookie 再次访问不会重新签发，会话属于同一客户端", func() {
				ts.llm.ReplyText("Sigo acá.")
				w2 := ts.do(http.MethodPost, "/chat", map[string]string{"text": "¿seguís?", "conversationId": resp.ConversationID}, cookie)
				So(w2.Code, ShouldEqual, http.StatusOK)
				So(identityCookie(w2), ShouldBeNil)

				var again model.TextChatResponse
				decode(w2, &again)
				So(again.ConversationID, ShouldEqual, resp.ConversationID)

				list := ts.do(http.MethodGet, "/conversations", nil, cookie)
				So(list.Code, ShouldEqual, http.StatusOK)
				var summaries []model.ConversationSummary
				decode(list, &summaries)
				So(summaries, ShouldHaveLength, 1)
				So(summaries[0].LastMessagePreview, ShouldEqual, "Sigo acá.")

				detail := ts.do(http.MethodGet, "/conversations/"+resp.ConversationID, nil, cookie)
				So(detail.Code, ShouldEqual, http.StatusOK)
				var d model.ConversationDetail
				decode(detail, &d)
				So(d.Messages, ShouldHaveLength, 4)

				Convey("其他客户端看不到该会话", func() {
					other := ts.do(http.MethodGet, "/conversations/"+resp.ConversationID, nil)
					So(other.Code, ShouldEqual, http.StatusNotFound)
					So(other.Body.String(), ShouldEqual, `{"error":"not found"}`)

					empty := ts.do(http.MethodGet, "/conversations", nil)
					So(empty.Body.String(), ShouldEqual, "[]")
				})
			})
		})

		Convey("结构化练习题放在 data 中", func() {
			ts.llm.ReplyText(`{"exercises":[{"topic":"ecuaciones_lineales","difficulty":"baja","statement":"Recta por (0, 2) con pendiente 1","steps":["y = x + 2"],"answer":"y = x + 2"}]}`)

			w := ts.do(http.MethodPost, "/chat", map[string]string{"text": "un ejercicio"})
			So(w.Code, ShouldEqual, http.StatusOK)

			var resp model.ExercisesChatResponse
			decode(w, &resp)
			So(resp.Data, ShouldNotBeNil)
			So(resp.Data.Exercises, ShouldHaveLength, 1)
			So(resp.Data.Exercises[0].Source.Type, ShouldEqual, mathtools.SourceTypeModel)
		})

		Convey("多道题在会话详情中原样取回", func() {
			ts.llm.ReplyText(`{"exercises":[` +
				`{"topic":"ecuaciones_lineales","difficulty":"media","statement":"Recta por (0, 1) y (1, 3)","steps":["m = 2","b = 1"],"answer":"y = 2x + 1"},` +
				`{"topic":"ecuaciones_lineales","difficulty":"media","statement":"Paralela a y = 4x por (1, 0)","steps":["m = 4","b = -4"],"answer":"y = 4x - 4"},` +
				`{"topic":"ecuaciones_lineales","difficulty":"media","statement":"Intersección de y = x e y = -x + 2","steps":["x = -x + 2","x = 1"],"answer":"(1, 1)"}]}`)

			w := ts.do(http.MethodPost, "/chat", map[string]string{"text": "tres ejercicios"})
			So(w.Code, ShouldEqual, http.StatusOK)
			cookie := identityCookie(w)
			So(cookie, ShouldNotBeNil)

			var resp model.ExercisesChatResponse
			decode(w, &resp)
			So(resp.Data.Exercises, ShouldHaveLength, 3)

			detail := ts.do(http.MethodGet, "/conversations/"+resp.ConversationID, nil, cookie)
			So(detail.Code, ShouldEqual, http.StatusOK)
			var d model.ConversationDetail
			decode(detail, &d)
			So(d.Messages, ShouldHaveLength, 2)
			So(d.Exercises, ShouldHaveLength, 3)

			assistantID := d.Messages[1].ID
			for i, ex := range d.Exercises {
				want := resp.Data.Exercises[i]
				So(ex.ID, ShouldEqual, want.ID)
				So(ex.Statement, ShouldEqual, want.Statement)
				So(ex.Answer, ShouldEqual, want.Answer)
				So(ex.Steps, ShouldResemble, want.Steps)
				So(ex.MessageID, ShouldEqual, assistantID)
			}
		})

		Convey("非法输入返回 400 且不调用模型", func() {
			for _, body := range []any{`{"text":`, map[string]string{"text": "  "}, map[string]string{"text": "hola", "conversationId": "xyz"}} {
				w := ts.do(http.MethodPost, "/chat", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, `"error"`)
			}
			So(ts.llm.Calls(), ShouldEqual, 0)
		})

		Convey("模型失败返回 502 且不暴露内部错误", func() {
			ts.llm.ReplyError(errors.New("dial tcp 10.0.0.1:443: connection refused"))

			w := ts.do(http.MethodPost, "/chat", map[string]string{"text": "hola"})
			So(w.Code, ShouldEqual, http.StatusBadGateway)
			So(w.Body.String(), ShouldNotContainSubstring, "10.0.0.1")
		})

		Convey("存储失败返回 500", func() {
			ts.store.FailMessageCreate = errors.New("write conflict")

			w := ts.do(http.MethodPost, "/chat", map[string]string{"text": "hola"})
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(w.Body.String(), ShouldNotContainSubstring, "write conflict")
		})
	})
}

func TestAmbientRoutes(t *testing.T) {
	Convey("健康检查与中间件", t, func() {
		ts := newTestServer()

		Convey("health 与 ready", func() {
			So(ts.do(http.MethodGet, "/health", nil).Code, ShouldEqual, http.StatusOK)
			So(ts.do(http.MethodGet, "/ready", nil).Code, ShouldEqual, http.StatusOK)

			ts.db.err = errors.New("no reachable servers")
			So(ts.do(http.MethodGet, "/ready", nil).Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("请求 id 透传或生成", func() {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("X-Request-ID", "abc-123")
			w := httptest.NewRecorder()
			ts.srv.Engine().ServeHTTP(w, req)
			So(w.Header().Get("X-Request-ID"), ShouldEqual, "abc-123")

			So(ts.do(http.MethodGet, "/health", nil).Header().Get("X-Request-ID"), ShouldNotBeEmpty)
		})

		Convey("CORS 只放行配置的来源", func() {
			preflight := func(origin string) *httptest.ResponseRecorder {
				req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
				req.Header.Set("Origin", origin)
				req.Header.Set("Access-Control-Request-Method", "POST")
				w := httptest.NewRecorder()
				ts.srv.Engine().ServeHTTP(w, req)
				return w
			}

			ok := preflight("http://localhost:3000")
			So(ok.Code, ShouldEqual, http.StatusNoContent)
			So(ok.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "http://localhost:3000")
			So(ok.Header().Get("Access-Control-Allow-Credentials"), ShouldEqual, "true")

			denied := preflight("https://evil.example")
			So(denied.Header().Get("Access-Control-Allow-Origin"), ShouldBeEmpty)
		})
	})
}
