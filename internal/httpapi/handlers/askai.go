package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/insightdeck/insightdeck/internal/common"
)

type askAIReq struct {
	Question         string          `json:"question"`
	GenerationResult json.RawMessage `json:"generationResult"`
	KnowledgeFileIDs []string        `json:"knowledgeFileIds"`
}

// AskAI streams the answer as server-sent events: one {"content": delta}
// per chunk, closed by [DONE]. A client disconnect cancels the request
// context, which releases the upstream connection instead of buffering
// the rest of the completion.
func (h *Handler) AskAI(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		common.Error(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req askAIReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		badRequest(c, "question is required")
		return
	}

	ctx := c.Request.Context()
	kbCtx := h.Knowledge.Context(ctx, uid, req.KnowledgeFileIDs)

	chunks, errs, err := h.runner().AskStream(ctx, req.Question, string(req.GenerationResult), kbCtx)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		fmt.Fprintf(c.Writer, "event: error\ndata: {\"error\":\"streaming unsupported\"}\n\n")
		return
	}

	writeDelta := func(content string) {
		b, err := json.Marshal(gin.H{"content": content})
		if err != nil {
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", string(b))
		flusher.Flush()
	}

	for {
		select {
		case chunk, open := <-chunks:
			if !open {
				fmt.Fprint(c.Writer, "data: [DONE]\n\n")
				flusher.Flush()
				return
			}
			writeDelta(chunk)

		case streamErr, open := <-errs:
			if !open {
				errs = nil
				continue
			}
			if streamErr != nil {
				h.log.WithError(streamErr).Warn("ask-ai stream failed")
				b, _ := json.Marshal(gin.H{"error": streamErr.Error()})
				fmt.Fprintf(c.Writer, "event: error\ndata: %s\n\n", string(b))
				flusher.Flush()
				return
			}

		case <-ctx.Done():
			// client went away; stop forwarding
			return
		}
	}
}
