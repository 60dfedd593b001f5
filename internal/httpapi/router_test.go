package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"

	"github.com/insightdeck/insightdeck/internal/ai"
	"github.com/insightdeck/insightdeck/internal/apperr"
	"github.com/insightdeck/insightdeck/internal/audit"
	"github.com/insightdeck/insightdeck/internal/config"
	"github.com/insightdeck/insightdeck/internal/conversation"
	"github.com/insightdeck/insightdeck/internal/db"
	"github.com/insightdeck/insightdeck/internal/generation"
	"github.com/insightdeck/insightdeck/internal/httpapi/handlers"
	"github.com/insightdeck/insightdeck/internal/identity"
	"github.com/insightdeck/insightdeck/internal/knowledge"
	"github.com/insightdeck/insightdeck/internal/policycache"
)

func init() { gin.SetMode(gin.TestMode) }

const testSecret = "router-test-secret"

var exactlyRe = regexp.MustCompile(`exactly (\d+)`)

// scriptedProvider answers each task with well-formed payloads, routed by
// the system instruction. It counts calls so tests can assert the gate
// stopped a request before any completion was attempted.
type scriptedProvider struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []ai.Message, params ai.Params) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.err != nil {
		return "", p.err
	}
	if len(messages) == 0 {
		return "", apperr.UpstreamTransient("no messages", nil)
	}
	system := messages[0].Content
	switch {
	case strings.Contains(system, "data visualization"):
		n := 1
		if m := exactlyRe.FindStringSubmatch(system); m != nil {
			fmt.Sscanf(m[1], "%d", &n)
		}
		charts := make([]string, 0, n)
		for i := 0; i < n; i++ {
			charts = append(charts, fmt.Sprintf(
				`{"title":{"text":"Chart %d"},"series":[{"type":"bar","data":[%d,2,3]}]}`, i+1, i+1))
		}
		return fmt.Sprintf(`{"charts":[%s]}`, strings.Join(charts, ",")), nil
	case strings.Contains(system, "analytics assistant"):
		return `{"key_insights":["hiring is up"],"next_steps":["review Q3"]}`, nil
	case strings.Contains(system, "policy analyst"):
		return `{"policies":[{"name":"Emiratisation targets","status":"active"}],"recommendations":["expand quotas"]}`, nil
	case strings.Contains(system, "You modify chart configurations"):
		return `{"title":{"text":"Modified"},"series":[{"type":"bar","itemStyle":{"color":"red"},"data":[1,2,3]}]}`, nil
	case strings.Contains(system, "senior analyst"):
		return `{"report":"A detailed narrative."}`, nil
	case strings.Contains(system, "conversational assistant"):
		return `{"response":"Which emirate are you interested in?","needsMoreInfo":true,"generateContent":false,"context":{"domain":"hiring"}}`, nil
	default:
		return "ok", nil
	}
}

func (p *scriptedProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

type env struct {
	router   *gin.Engine
	provider *scriptedProvider
	db       *gorm.DB
	policies *policycache.Cache
}

func newEnv(t *testing.T, opts ...func(*envConfig)) *env {
	t.Helper()
	gdb := openTestDB(t)

	ec := envConfig{provider: &scriptedProvider{}}
	for _, o := range opts {
		o(&ec)
	}

	policies := policycache.NewCache(gdb, nil)
	if ec.recorder == nil {
		ec.recorder = audit.NewDirectRecorder(audit.NewWriter(gdb, policies))
	}

	cfg := config.Config{
		UploadDir:         t.TempDir(),
		MapboxPublicToken: "pk.test-token",
	}
	runner := generation.NewRunner(ec.provider, 2*time.Second)
	if ec.realProvider != nil {
		runner = generation.NewRunner(ec.realProvider, 2*time.Second)
	}

	h := handlers.NewHandler(cfg,
		generation.NewOrchestrator(runner),
		knowledge.NewLoader(gdb, 5, 2000),
		conversation.NewRepo(gdb),
		policies,
		ec.recorder,
	)
	return &env{
		router:   NewRouter(h, identity.NewJWT(testSecret), identity.NewStatic("proto-user")),
		provider: ec.provider,
		db:       gdb,
		policies: policies,
	}
}

type envConfig struct {
	provider     *scriptedProvider
	realProvider ai.Provider
	recorder     audit.Recorder
}

func withProviderError(err error) func(*envConfig) {
	return func(ec *envConfig) { ec.provider.err = err }
}

func withRealProvider(p ai.Provider) func(*envConfig) {
	return func(ec *envConfig) { ec.realProvider = p }
}

func withRecorder(r audit.Recorder) func(*envConfig) {
	return func(ec *envConfig) { ec.recorder = r }
}

func mintToken(t *testing.T, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (e *env) post(t *testing.T, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestBearerGate_StopsRequestBeforeGeneration(t *testing.T) {
	e := newEnv(t)

	for _, token := range []string{"", "not-a-jwt"} {
		w := e.post(t, "/functions/generate-advanced-charts", token, gin.H{"prompt": "hiring trends"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Equal(t, "Unauthorized", gjson.Get(w.Body.String(), "error").String())
	}
	require.Equal(t, 0, e.provider.count(), "rejected requests must not reach the completion endpoint")

	w := e.post(t, "/functions/generate-advanced-charts", mintToken(t, "user-1"),
		gin.H{"prompt": "hiring trends", "numberOfCharts": 2})
	require.Equal(t, http.StatusOK, w.Code)
	require.Positive(t, e.provider.count())
}

func TestPrototypeRoutes_SkipBearerToken(t *testing.T) {
	e := newEnv(t)

	w := e.post(t, "/functions/conversational-chat", "", gin.H{"message": "show me hiring data"})
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	convID := gjson.Get(body, "conversationId").String()
	require.NotEmpty(t, convID)
	require.Equal(t, "Which emirate are you interested in?", gjson.Get(body, "response").String())
	require.True(t, gjson.Get(body, "needsMoreInfo").Bool())

	var msgs []conversation.Message
	require.NoError(t, e.db.Where("conversation_id = ?", convID).Find(&msgs).Error)
	require.Len(t, msgs, 2)
	roles := map[string]string{}
	for _, m := range msgs {
		roles[m.Role] = m.Content
	}
	require.Equal(t, "show me hiring data", roles["user"])
	require.Equal(t, "Which emirate are you interested in?", roles["assistant"])
}

func TestAdvancedCharts_ResponseShape(t *testing.T) {
	e := newEnv(t)

	w := e.post(t, "/functions/generate-advanced-charts", mintToken(t, "user-1"), gin.H{
		"prompt":                  "hiring trends in Dubai",
		"numberOfCharts":          3,
		"chartTypes":              []string{"bar", "line", "bar"},
		"generateDetailedReports": true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	require.Len(t, gjson.Get(body, "charts").Array(), 3)
	require.Equal(t, []string{"bar", "line", "bar"},
		toStrings(gjson.Get(body, "diagnostics.chartTypes")))
	require.Equal(t, int64(3), gjson.Get(body, "diagnostics.dimensions.requested").Int())
	require.Equal(t, "hiring is up", gjson.Get(body, "insights.0").String())
	require.Equal(t, "A detailed narrative.", gjson.Get(body, "detailedReport").String())
	// Region in prompt: the policy task joins and the payload is additive.
	require.NotEmpty(t, gjson.Get(body, "policies.policies").Array())
}

func TestAdvancedCharts_UpstreamFailureStillServes(t *testing.T) {
	e := newEnv(t, withProviderError(apperr.UpstreamTransient("upstream down", nil)))

	w := e.post(t, "/functions/generate-advanced-charts", mintToken(t, "user-1"),
		gin.H{"prompt": "hiring trends", "numberOfCharts": 3})
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	require.Len(t, gjson.Get(body, "charts").Array(), 3)
	require.NotEmpty(t, gjson.Get(body, "insights").Array())
	require.Contains(t, gjson.Get(body, "diagnostics.notes").String(), "deterministic fallback")
}

// A broken audit path must never leak into the response.
func TestAdvancedCharts_PersistenceFailureLeavesResponseIntact(t *testing.T) {
	brokenDB, err := gorm.Open(gormsqlite.Open("file:brokenaudit?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	broken := audit.NewDirectRecorder(audit.NewWriter(brokenDB, policycache.NewCache(brokenDB, nil)))

	e := newEnv(t, withRecorder(broken))

	w := e.post(t, "/functions/generate-advanced-charts", mintToken(t, "user-1"),
		gin.H{"prompt": "hiring trends", "numberOfCharts": 2})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, gjson.Get(w.Body.String(), "charts").Array(), 2)
	require.Equal(t, "hiring is up", gjson.Get(w.Body.String(), "insights.0").String())
}

func TestCustomizeChart_TextIndexBeatsBodyIndex(t *testing.T) {
	e := newEnv(t)

	configs := []gin.H{
		{"title": gin.H{"text": "First"}, "series": []gin.H{{"type": "bar", "data": []int{1}}}},
		{"title": gin.H{"text": "Second"}, "series": []gin.H{{"type": "bar", "data": []int{2}}}},
		{"title": gin.H{"text": "Third"}, "series": []gin.H{{"type": "bar", "data": []int{3}}}},
	}
	w := e.post(t, "/functions/customize-chart", mintToken(t, "user-1"), gin.H{
		"prompt":             "chart 2: make the bars red",
		"currentChartConfig": configs,
		"chartIndex":         0,
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	require.Equal(t, int64(1), gjson.Get(body, "chartIndex").Int())
	require.Equal(t, "Chart 2 updated", gjson.Get(body, "message").String())
	require.Equal(t, "Modified", gjson.Get(body, "modifiedChart.title.text").String())
}

func TestCustomizeChart_OutOfRangeIndexClampsToFirst(t *testing.T) {
	e := newEnv(t)

	configs := []gin.H{
		{"title": gin.H{"text": "Only"}, "series": []gin.H{{"type": "bar", "data": []int{1}}}},
		{"title": gin.H{"text": "Other"}, "series": []gin.H{{"type": "bar", "data": []int{2}}}},
	}
	w := e.post(t, "/functions/customize-chart", mintToken(t, "user-1"), gin.H{
		"prompt":             "chart 9: add a legend",
		"currentChartConfig": configs,
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, int64(0), gjson.Get(w.Body.String(), "chartIndex").Int())
}

func TestCustomizeChart_SingleConfigKeepsRequestedIndex(t *testing.T) {
	e := newEnv(t)

	w := e.post(t, "/functions/customize-chart", mintToken(t, "user-1"), gin.H{
		"prompt": "chart 2: make the bars red",
		"currentChartConfig": gin.H{
			"title":  gin.H{"text": "Solo"},
			"series": []gin.H{{"type": "bar", "data": []int{1}}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	// Single config gives no dashboard length to clamp against, so the
	// textual index rides through for the client to apply.
	require.Equal(t, int64(1), gjson.Get(w.Body.String(), "chartIndex").Int())
	require.Equal(t, "Chart 2 updated", gjson.Get(w.Body.String(), "message").String())
}

func TestGeneratePolicies_MissingKeyFailsFastWithConfigError(t *testing.T) {
	// Real provider, no key: the request must die on configuration before
	// any dial, not time out against the network.
	unconfigured := ai.NewOpenRouterProvider("http://127.0.0.1:1", "", "some/model", "", "", "")
	e := newEnv(t, withRealProvider(unconfigured))

	start := time.Now()
	w := e.post(t, "/functions/generate-policies", mintToken(t, "user-1"),
		gin.H{"region": "Dubai"})
	elapsed := time.Since(start)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, gjson.Get(w.Body.String(), "error").String(), "configuration error")
	require.Less(t, elapsed, 2*time.Second)
}

func TestGeneratePolicies_ServesCachedPayload(t *testing.T) {
	e := newEnv(t)

	cached := `{"policies":[{"name":"Cached quota rule","status":"active"}],"recommendations":["keep"]}`
	e.policies.Put(context.Background(), "Dubai", "general", cached, "seeded")

	w := e.post(t, "/functions/generate-policies", mintToken(t, "user-1"),
		gin.H{"region": "Dubai"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Cached quota rule", gjson.Get(w.Body.String(), "policies.0.name").String())
	require.Equal(t, 0, e.provider.count(), "cache hit must not trigger generation")
}

func TestGeneratePolicies_RequiresRegion(t *testing.T) {
	e := newEnv(t)

	w := e.post(t, "/functions/generate-policies", mintToken(t, "user-1"), gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "region is required", gjson.Get(w.Body.String(), "error").String())
	require.Equal(t, 0, e.provider.count())
}

func TestConversationalChat_UnknownConversationIs404(t *testing.T) {
	e := newEnv(t)

	w := e.post(t, "/functions/conversational-chat", "", gin.H{
		"conversationId": "2c5daba7-30a1-4e52-8f2b-000000000000",
		"message":        "continue",
	})
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "not found", gjson.Get(w.Body.String(), "error").String())
	require.Equal(t, 0, e.provider.count(), "no generation for a conversation the caller cannot see")
}

func TestMapboxToken_OpenRoute(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/functions/get-mapbox-token", nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "pk.test-token", gjson.Get(w.Body.String(), "token").String())
}

func toStrings(r gjson.Result) []string {
	arr := r.Array()
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		out = append(out, v.String())
	}
	return out
}
