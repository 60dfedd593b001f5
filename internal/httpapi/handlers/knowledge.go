package handlers

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/insightdeck/insightdeck/internal/common"
	"github.com/insightdeck/insightdeck/internal/knowledge"
)

type withKnowledgeReq struct {
	Prompt           string `json:"prompt"`
	UseKnowledgeBase bool   `json:"useKnowledgeBase"`
}

func (h *Handler) GenerateWithKnowledge(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		common.Error(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req withKnowledgeReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Prompt == "" {
		badRequest(c, "prompt is required")
		return
	}

	ctx := c.Request.Context()
	kbCtx := ""
	if req.UseKnowledgeBase {
		kbCtx = h.Knowledge.Context(ctx, uid, nil)
	}

	text, err := h.runner().FreeText(ctx, req.Prompt, kbCtx)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"generatedText":           text,
		"usedKnowledgeBase":       kbCtx != "",
		"knowledgeBaseFilesCount": h.Knowledge.Count(ctx, uid),
	})
}

// extractCap bounds how much text is pulled out of an upload.
const extractCap = 64 * 1024

// UploadFile stores a knowledge-base document. Text extraction here is
// deliberately thin: text-like files are read directly, anything else
// is stored without extracted content.
func (h *Handler) UploadFile(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		common.Error(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}

	id := newUUID()
	stored := id + filepath.Ext(fh.Filename)
	if err := os.MkdirAll(h.Cfg.UploadDir, 0o755); err != nil {
		common.Error(c, http.StatusInternalServerError, "storage unavailable")
		return
	}
	path := filepath.Join(h.Cfg.UploadDir, stored)
	if err := c.SaveUploadedFile(fh, path); err != nil {
		common.Error(c, http.StatusInternalServerError, "upload failed")
		return
	}

	mime := fh.Header.Get("Content-Type")
	extracted := ""
	if isTextLike(mime, fh.Filename) {
		extracted = readCapped(path)
	}

	row := &knowledge.File{
		ID:               id,
		UserID:           uid,
		Filename:         stored,
		OriginalFilename: fh.Filename,
		FileSize:         fh.Size,
		MimeType:         mime,
		ExtractedContent: extracted,
		StoragePath:      path,
	}
	if err := h.Knowledge.Save(c.Request.Context(), row); err != nil {
		common.Error(c, http.StatusInternalServerError, "could not record upload")
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": row})
}

func isTextLike(mime, name string) bool {
	if strings.HasPrefix(mime, "text/") {
		return true
	}
	switch mime {
	case "application/json", "application/csv", "application/xml":
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".csv", ".json", ".xml":
		return true
	}
	return false
}

func readCapped(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, extractCap))
	if err != nil {
		return ""
	}
	return string(b)
}
