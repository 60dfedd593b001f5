package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/insightdeck/insightdeck/internal/audit"
	"github.com/insightdeck/insightdeck/internal/common"
	"github.com/insightdeck/insightdeck/internal/conversation"
	"github.com/insightdeck/insightdeck/internal/generation"
	"github.com/insightdeck/insightdeck/internal/history"
)

type advancedChartsReq struct {
	Prompt                  string   `json:"prompt"`
	NumberOfCharts          int      `json:"numberOfCharts"`
	ChartTypes              []string `json:"chartTypes"`
	UseKnowledgeBase        bool     `json:"useKnowledgeBase"`
	KnowledgeBaseFiles      []string `json:"knowledgeBaseFiles"`
	GenerateDetailedReports bool     `json:"generateDetailedReports"`
	Persona                 string   `json:"persona"`
}

// GenerateAdvancedCharts is the orchestrated multi-task endpoint. After
// validation it always answers 200 with best-effort content.
func (h *Handler) GenerateAdvancedCharts(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		common.Error(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req advancedChartsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.GenerationError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Prompt == "" {
		common.GenerationError(c, http.StatusBadRequest, "prompt is required")
		return
	}

	kbCtx := ""
	if req.UseKnowledgeBase {
		kbCtx = h.Knowledge.Context(c.Request.Context(), uid, req.KnowledgeBaseFiles)
	}

	res := h.Orch.Run(c.Request.Context(), generation.AdvancedRequest{
		Prompt:         req.Prompt,
		NumberOfCharts: req.NumberOfCharts,
		ChartTypes:     req.ChartTypes,
		KnowledgeCtx:   kbCtx,
		Persona:        req.Persona,
		WithReport:     req.GenerateDetailedReports,
	})

	h.recordAdvanced(c, uid, req, &res)

	body := gin.H{
		"charts":         res.Charts,
		"diagnostics":    res.Diagnostics,
		"insights":       res.Insights,
		"detailedReport": res.DetailedReport,
	}
	if res.Policies != nil {
		body["policies"] = res.Policies
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) recordAdvanced(c *gin.Context, uid string, req advancedChartsReq, res *generation.AdvancedResult) {
	id, err := common.NewULID()
	if err != nil {
		h.log.WithError(err).Warn("history id generation failed")
		return
	}
	charts, _ := json.Marshal(res.Charts)
	diags, _ := json.Marshal(res.Diagnostics)
	files, _ := json.Marshal(req.KnowledgeBaseFiles)

	chartType := ""
	if len(res.Diagnostics.ChartTypes) > 0 {
		chartType = res.Diagnostics.ChartTypes[0]
	}
	h.Recorder.Record(c.Request.Context(), audit.Job{
		Kind: audit.KindChartHistory,
		ChartHistory: &history.Record{
			ID:                 id,
			UserID:             uid,
			Prompt:             req.Prompt,
			ChartConfig:        string(charts),
			ChartType:          chartType,
			Diagnostics:        string(diags),
			KnowledgeBaseFiles: string(files),
		},
	})

	if res.Policies != nil {
		content, _ := json.Marshal(res.Policies)
		h.Recorder.Record(c.Request.Context(), audit.Job{
			Kind: audit.KindPolicyUpsert,
			Policy: &audit.PolicyUpsert{
				Region:      res.Region,
				Category:    "general",
				Content:     string(content),
				DataContext: req.Prompt,
			},
		})
	}
}

type singleChartReq struct {
	Prompt             string   `json:"prompt"`
	KnowledgeBaseFiles []string `json:"knowledgeBaseFiles"`
	Persona            string   `json:"persona"`
}

func (h *Handler) GenerateChart(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		common.Error(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req singleChartReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Prompt == "" {
		badRequest(c, "prompt is required")
		return
	}

	kbCtx := h.Knowledge.Context(c.Request.Context(), uid, req.KnowledgeBaseFiles)

	option, err := h.runner().SingleChart(c.Request.Context(), req.Prompt, kbCtx, req.Persona)
	if err != nil {
		respondError(c, err)
		return
	}

	diagnostics := gin.H{
		"chartTypes": []string{option.Type()},
		"notes":      "charts: model-generated",
		"sources":    chartSources(kbCtx),
	}

	if id, idErr := common.NewULID(); idErr == nil {
		cfg, _ := json.Marshal(option)
		diags, _ := json.Marshal(diagnostics)
		files, _ := json.Marshal(req.KnowledgeBaseFiles)
		h.Recorder.Record(c.Request.Context(), audit.Job{
			Kind: audit.KindChartHistory,
			ChartHistory: &history.Record{
				ID:                 id,
				UserID:             uid,
				Prompt:             req.Prompt,
				ChartConfig:        string(cfg),
				ChartType:          option.Type(),
				Diagnostics:        string(diags),
				KnowledgeBaseFiles: string(files),
			},
		})
	}

	c.JSON(http.StatusOK, gin.H{"option": option, "diagnostics": diagnostics})
}

func chartSources(kbCtx string) []string {
	sources := []string{"completion-model"}
	if kbCtx != "" {
		sources = append(sources, "knowledge-base")
	}
	return sources
}

type customizeChartReq struct {
	Prompt             string          `json:"prompt"`
	CurrentChartConfig json.RawMessage `json:"currentChartConfig"`
	ChartIndex         int             `json:"chartIndex"`
}

func (h *Handler) CustomizeChart(c *gin.Context) {
	if _, ok := userID(c); !ok {
		common.Error(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req customizeChartReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Prompt == "" {
		badRequest(c, "prompt is required")
		return
	}
	if len(req.CurrentChartConfig) == 0 {
		badRequest(c, "currentChartConfig is required")
		return
	}

	// The config may be one chart or the whole dashboard array; the
	// array length, when present, bounds index clamping.
	var configs []generation.ChartConfig
	if err := json.Unmarshal(req.CurrentChartConfig, &configs); err != nil {
		var single generation.ChartConfig
		if err := json.Unmarshal(req.CurrentChartConfig, &single); err != nil {
			badRequest(c, "currentChartConfig is not valid chart JSON")
			return
		}
		idx := generation.ResolveChartIndex(req.Prompt, req.ChartIndex, 0)
		h.customize(c, req.Prompt, single, idx)
		return
	}
	if len(configs) == 0 {
		badRequest(c, "currentChartConfig is empty")
		return
	}
	idx := generation.ResolveChartIndex(req.Prompt, req.ChartIndex, len(configs))
	h.customize(c, req.Prompt, configs[idx], idx)
}

func (h *Handler) customize(c *gin.Context, prompt string, current generation.ChartConfig, idx int) {
	modified, err := h.runner().Customize(c.Request.Context(), prompt, current)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"modifiedChart": modified,
		"chartIndex":    idx,
		"message":       fmt.Sprintf("Chart %d updated", idx+1),
	})
}

type multipleChartsReq struct {
	ConversationID string         `json:"conversationId"`
	MessageID      string         `json:"messageId"`
	Context        map[string]any `json:"context"`
}

// GenerateMultipleCharts is the prototype-mode orchestration surface:
// no bearer token, fixed identity, request parameters carried in the
// conversation context.
func (h *Handler) GenerateMultipleCharts(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		common.Error(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req multipleChartsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.GenerationError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ConversationID == "" {
		common.GenerationError(c, http.StatusBadRequest, "conversationId is required")
		return
	}

	reqCtx := req.Context
	if conv, err := h.Conversations.Get(c.Request.Context(), uid, req.ConversationID); err == nil {
		merged := h.Conversations.ContextMap(conv)
		for k, v := range reqCtx {
			merged[k] = v
		}
		reqCtx = merged
	}

	res := h.Orch.Run(c.Request.Context(), generation.AdvancedRequest{
		Prompt:         promptFromContext(reqCtx),
		NumberOfCharts: intFromContext(reqCtx, "numberOfCharts", 3),
		ChartTypes:     stringsFromContext(reqCtx, "chartTypes"),
		Context:        reqCtx,
	})

	h.recordConversationContent(c, req.ConversationID, req.MessageID, &res)

	c.JSON(http.StatusOK, gin.H{
		"charts":      res.Charts,
		"insights":    res.Insights,
		"diagnostics": res.Diagnostics,
	})
}

func (h *Handler) recordConversationContent(c *gin.Context, conversationID, messageID string, res *generation.AdvancedResult) {
	var msgID *string
	if messageID != "" {
		msgID = &messageID
	}
	record := func(contentType string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			return
		}
		h.Recorder.Record(c.Request.Context(), audit.Job{
			Kind: audit.KindGeneratedContent,
			GeneratedContent: &conversation.GeneratedContent{
				ID:             newUUID(),
				ConversationID: conversationID,
				MessageID:      msgID,
				ContentType:    contentType,
				Content:        string(b),
				RegionContext:  res.Region,
			},
		})
	}
	record(conversation.ContentTypeCharts, res.Charts)
	record(conversation.ContentTypeInsights, res.Insights)
	if res.Policies != nil {
		record(conversation.ContentTypePolicies, res.Policies)
	}
}

func promptFromContext(ctx map[string]any) string {
	for _, key := range []string{"prompt", "request", "topic"} {
		if s, ok := ctx[key].(string); ok && s != "" {
			return s
		}
	}
	region, _ := ctx["region"].(string)
	domain, _ := ctx["domain"].(string)
	switch {
	case region != "" && domain != "":
		return fmt.Sprintf("Generate dashboard charts about %s in %s", domain, region)
	case region != "":
		return "Generate workforce dashboard charts for " + region
	case domain != "":
		return "Generate dashboard charts about " + domain
	default:
		return "Generate workforce dashboard charts"
	}
}

func intFromContext(ctx map[string]any, key string, def int) int {
	switch v := ctx[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func stringsFromContext(ctx map[string]any, key string) []string {
	raw, ok := ctx[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
