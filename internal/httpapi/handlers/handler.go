package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/insightdeck/insightdeck/internal/apperr"
	"github.com/insightdeck/insightdeck/internal/audit"
	"github.com/insightdeck/insightdeck/internal/common"
	"github.com/insightdeck/insightdeck/internal/config"
	"github.com/insightdeck/insightdeck/internal/conversation"
	"github.com/insightdeck/insightdeck/internal/generation"
	"github.com/insightdeck/insightdeck/internal/httpapi/middleware"
	"github.com/insightdeck/insightdeck/internal/knowledge"
	"github.com/insightdeck/insightdeck/internal/policycache"
)

type Handler struct {
	Cfg           config.Config
	Orch          *generation.Orchestrator
	Knowledge     *knowledge.Loader
	Conversations *conversation.Repo
	Policies      *policycache.Cache
	Recorder      audit.Recorder

	log *logrus.Entry
}

func NewHandler(cfg config.Config, orch *generation.Orchestrator, kb *knowledge.Loader,
	convs *conversation.Repo, policies *policycache.Cache, rec audit.Recorder) *Handler {
	return &Handler{
		Cfg:           cfg,
		Orch:          orch,
		Knowledge:     kb,
		Conversations: convs,
		Policies:      policies,
		Recorder:      rec,
		log:           logrus.WithField("component", "httpapi"),
	}
}

func (h *Handler) runner() *generation.Runner { return h.Orch.Runner() }

func userID(c *gin.Context) (string, bool) {
	return middleware.UserID(c)
}

// badRequest rejects malformed input through the validation branch of
// the taxonomy.
func badRequest(c *gin.Context, msg string) {
	respondError(c, apperr.Validation("", msg))
}

// respondError maps the error taxonomy onto the single-shot endpoints'
// statuses. Orchestrated endpoints never reach here once dispatched.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		common.Error(c, http.StatusUnauthorized, "Unauthorized")
	case apperr.IsValidation(err):
		common.Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		common.Error(c, http.StatusNotFound, "not found")
	case apperr.IsConfigUpstream(err):
		common.Error(c, http.StatusInternalServerError, "completion endpoint configuration error: "+err.Error())
	case apperr.IsParse(err):
		common.Error(c, http.StatusInternalServerError, "generation returned unparseable output")
	default:
		common.Error(c, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func newUUID() string { return uuid.NewString() }
