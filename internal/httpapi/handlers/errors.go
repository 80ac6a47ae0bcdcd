package handlers

import (
	"net/http"

	errors "github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/suPer8Hu/ai-studio/internal/ai"
	"github.com/suPer8Hu/ai-studio/internal/apikey"
	"github.com/suPer8Hu/ai-studio/internal/chat"
	"github.com/suPer8Hu/ai-studio/internal/common"
	"github.com/suPer8Hu/ai-studio/internal/github"
	"github.com/suPer8Hu/ai-studio/internal/log"
	"github.com/suPer8Hu/ai-studio/internal/project"
	"go.uber.org/zap"
)

// apiError is the client-facing form of a domain error.
type apiError struct {
	Status  int
	Code    int
	Message string
	Details any
}

type credentialDetails struct {
	Provider      string `json:"provider"`
	DisplayName   string `json:"display_name"`
	Setting       string `json:"setting"`
	HelpURL       string `json:"help_url,omitempty"`
	FallbackModel string `json:"fallback_model,omitempty"`
}

func (h *Handler) classify(c *gin.Context, uid uint64, err error) apiError {
	var (
		verr *chat.ValidationError
		cm   *ai.CredentialMissingError
		mnf  *ai.ModelNotFoundError
		ue   *ai.UpstreamError
		perr *chat.PersistenceError
		rl   *github.RateLimitError
	)
	switch {
	case errors.As(err, &verr):
		return apiError{http.StatusBadRequest, common.CodeValidation, "invalid request", gin.H{"fields": verr.Fields}}
	case errors.Is(err, chat.ErrProjectNotFound), errors.Is(err, project.ErrNotFound):
		return apiError{Status: http.StatusNotFound, Code: common.CodeNotFound, Message: "project not found"}
	case errors.Is(err, chat.ErrMessageNotFound):
		return apiError{Status: http.StatusNotFound, Code: common.CodeNotFound, Message: "message not found"}
	case errors.Is(err, apikey.ErrNotFound):
		return apiError{Status: http.StatusNotFound, Code: common.CodeNotFound, Message: "api key not found"}
	case errors.Is(err, chat.ErrJobNotFound):
		return apiError{Status: http.StatusNotFound, Code: common.CodeJobNotFound, Message: "job not found"}
	case errors.Is(err, chat.ErrNotUserMessage):
		return apiError{Status: http.StatusBadRequest, Code: common.CodeValidation, Message: err.Error()}
	case errors.As(err, &mnf):
		return apiError{Status: http.StatusBadRequest, Code: common.CodeModelNotFound, Message: mnf.Error()}
	case errors.As(err, &cm):
		d := credentialDetails{
			Provider:    cm.Provider,
			DisplayName: cm.DisplayName,
			Setting:     cm.Setting,
			HelpURL:     cm.HelpURL,
		}
		if h.Factory != nil {
			if m, ok := h.Factory.FallbackModel(c.Request.Context(), uid, cm.Provider); ok {
				d.FallbackModel = m.ID
			}
		}
		return apiError{http.StatusBadRequest, common.CodeCredentialMissing,
			cm.DisplayName + " API key is not configured", d}
	case errors.Is(err, ai.ErrUserKeyUnsupported):
		return apiError{Status: http.StatusBadRequest, Code: common.CodeUserKeyRejected, Message: err.Error()}
	case errors.As(err, &ue) && ue.RateLimited:
		return apiError{Status: http.StatusTooManyRequests, Code: common.CodeUpstreamRateLimit,
			Message: ue.Provider + " rate limit reached, try again later"}
	case errors.As(err, &ue):
		return apiError{Status: http.StatusBadGateway, Code: common.CodeUpstream, Message: ue.Error()}
	case errors.As(err, &perr):
		return apiError{Status: http.StatusInternalServerError, Code: common.CodePersistence, Message: "failed to save message"}
	case errors.Is(err, chat.ErrQueueUnavailable), errors.Is(err, project.ErrNoGitHub):
		return apiError{Status: http.StatusServiceUnavailable, Code: common.CodeUnavailable, Message: err.Error()}
	case errors.Is(err, project.ErrPathExists):
		return apiError{Status: http.StatusConflict, Code: common.CodeConflict, Message: err.Error()}
	case errors.Is(err, project.ErrInvalidName), errors.Is(err, project.ErrInvalidPath),
		errors.Is(err, apikey.ErrUnknownProvider), errors.Is(err, apikey.ErrEmptyKey),
		errors.Is(err, github.ErrInvalidRepoURL), errors.Is(err, github.ErrNotAFile):
		return apiError{Status: http.StatusBadRequest, Code: common.CodeValidation, Message: err.Error()}
	case errors.Is(err, github.ErrNotFound):
		return apiError{Status: http.StatusNotFound, Code: common.CodeNotFound, Message: "github resource not found"}
	case errors.As(err, &rl):
		return apiError{http.StatusTooManyRequests, common.CodeRateLimited, "github rate limit reached",
			gin.H{"reset": rl.Reset}}
	default:
		log.L().Error("unhandled request error",
			zap.String("path", c.Request.URL.Path),
			zap.Uint64("user_id", uid),
			zap.Error(err))
		return apiError{Status: http.StatusInternalServerError, Code: common.CodeInternal, Message: "internal error"}
	}
}

func (h *Handler) fail(c *gin.Context, uid uint64, err error) {
	e := h.classify(c, uid, err)
	if e.Details != nil {
		common.FailWithDetails(c, e.Status, e.Code, e.Message, e.Details)
		return
	}
	common.Fail(c, e.Status, e.Code, e.Message)
}

// bindFailed reports a ShouldBind error: field rules become a validation
// error, anything else is malformed JSON.
func bindFailed(c *gin.Context, err error) {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		fields := make([]chat.FieldError, 0, len(ves))
		for _, fe := range ves {
			fields = append(fields, chat.FieldError{Field: fe.Field(), Rule: fe.Tag(), Message: "failed " + fe.Tag()})
		}
		common.FailWithDetails(c, http.StatusBadRequest, common.CodeValidation, "invalid request", gin.H{"fields": fields})
		return
	}
	common.Fail(c, http.StatusBadRequest, common.CodeInvalidJSON, "invalid json")
}
