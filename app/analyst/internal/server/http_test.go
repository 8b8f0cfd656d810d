package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/match_radar/app/analyst/internal/conf"
	"github.com/iWorld-y/match_radar/app/analyst/internal/data"
	"github.com/iWorld-y/match_radar/app/analyst/internal/service"
	"github.com/iWorld-y/match_radar/app/analyst/internal/usecase"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/chat"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/config"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/events"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/guard"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/metrics"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/pipeline"
	"github.com/iWorld-y/match_radar/app/match_radar/pkg/stats"
)

type fixedAnalyzer struct{}

func (fixedAnalyzer) Run(context.Context, model.MatchQuery, pipeline.RunOptions) (*model.AnalysisResult, error) {
	return &model.AnalysisResult{RawNews: "news", EnhancedAnalysis: "Arsenal should edge it."}, nil
}

func (fixedAnalyzer) Insights(context.Context, model.MatchQuery, *stats.Bundle) (string, error) {
	return "", nil
}

type fixedLLM struct{}

func (fixedLLM) Complete(context.Context, []*schema.Message) (string, error) {
	return "Arsenal by one.", nil
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	logger := log.DefaultLogger
	cfg := &config.Config{
		DB:       config.DBConfig{Driver: "sqlite", DSN: ":memory:"},
		Analysis: config.AnalysisConfig{DisableStats: true},
	}
	d, cleanup, err := data.NewData(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	analyses, err := data.NewAnalysisRepo(d, cfg)
	require.NoError(t, err)

	m := metrics.New()
	ucUser := usecase.NewUserUseCase(data.NewUserRepo(d, logger), &conf.Auth{JwtKey: "test"}, logger)
	ucAnalysis := usecase.NewAnalysisUseCase(analyses, fixedAnalyzer{}, nil, guard.NewLocal(), events.Nop{}, m, cfg, logger)
	ucChat := usecase.NewChatUseCase(chat.NewSessions(), chat.NewResponder(fixedLLM{}, nil, nil), ucAnalysis, m, logger)
	s := service.NewAnalystService(ucUser, ucAnalysis, ucChat, logger)

	return NewHTTPServer(&conf.Server{Http: &conf.HTTP{Timeout: "10s"}}, s, ucUser, m, logger)
}

func do(t *testing.T, h http.Handler, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func TestHTTPServer_ChatFlow(t *testing.T) {
	h := newTestServer(t)

	code, _ := do(t, h, http.MethodPost, "/api/v1/users/register", "", `{"username":"alice","password":"secret"}`)
	require.Equal(t, http.StatusOK, code)
	code, login := do(t, h, http.MethodPost, "/api/v1/users/login", "", `{"username":"alice","password":"secret"}`)
	require.Equal(t, http.StatusOK, code)
	token, _ := login["token"].(string)
	require.NotEmpty(t, token)

	code, sess := do(t, h, http.MethodPost, "/api/v1/sessions", token, "")
	require.Equal(t, http.StatusOK, code)
	id, _ := sess["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "no-analysis", sess["state"])

	code, attached := do(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/analysis", token,
		`{"home_team":"Arsenal","away_team":"Chelsea","league":"Premier League","date":"2024-05-01"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, attached["attached"])

	code, answer := do(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/messages", token, `{"question":"Who wins?"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Arsenal by one.", answer["answer"])

	// 会话只对创建者可见
	code, _ = do(t, h, http.MethodGet, "/api/v1/sessions/"+id+"/messages", "", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, hist := do(t, h, http.MethodGet, "/api/v1/sessions/"+id+"/messages", token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, hist["messages"], 2)

	code, reset := do(t, h, http.MethodDelete, "/api/v1/sessions/"+id, token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "no-analysis", reset["state"])
}

func TestHTTPServer_Analyses(t *testing.T) {
	h := newTestServer(t)

	code, created := do(t, h, http.MethodPost, "/api/v1/analyses", "",
		`{"home_team":"Arsenal","away_team":"Chelsea","league":"Premier League","date":"2024-05-01"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Arsenal should edge it.", created["analysis"])
	id, _ := created["id"].(float64)
	require.NotZero(t, id)

	code, list := do(t, h, http.MethodGet, "/api/v1/analyses?page=1&page_size=5", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, list["analyses"], 1)

	code, _ = do(t, h, http.MethodGet, "/api/v1/analyses/abc", "", "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, h, http.MethodGet, "/api/v1/analyses/999", "", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, h, http.MethodPost, "/api/v1/analyses", "", `{"home_team":"Arsenal","date":"2024-05-01"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHTTPServer_AuthAndMetrics(t *testing.T) {
	h := newTestServer(t)

	code, _ := do(t, h, http.MethodPost, "/api/v1/sessions", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, mems := do(t, h, http.MethodGet, "/api/v1/memories", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, mems["enabled"])

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
