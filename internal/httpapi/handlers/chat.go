package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-studio/internal/chat"
	"github.com/suPer8Hu/ai-studio/internal/common"
)

const pingInterval = 15 * time.Second

// Chat streams one assistant turn as server-sent events.
func (h *Handler) Chat(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	st, err := h.ChatSvc.StartStream(c.Request.Context(), uid, req)
	if err != nil {
		h.fail(c, uid, err)
		return
	}
	h.streamTurn(c, uid, st)
}

func (h *Handler) Regenerate(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	var req chat.RegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	st, err := h.ChatSvc.Regenerate(c.Request.Context(), uid, req)
	if err != nil {
		h.fail(c, uid, err)
		return
	}
	h.streamTurn(c, uid, st)
}

// streamTurn holds the response until the first chunk arrives, so a
// provider that fails immediately still gets a JSON error with a status.
func (h *Handler) streamTurn(c *gin.Context, uid uint64, st *chat.Stream) {
	ctx := c.Request.Context()
	chunks := st.Chunks()

	first, open := <-chunks
	if !open {
		res := <-st.Done()
		switch res.State {
		case chat.StateFailed:
			h.fail(c, uid, res.Err)
			return
		case chat.StateAborted:
			if ctx.Err() == nil {
				common.Fail(c, http.StatusGatewayTimeout, common.CodeUpstream, "generation timed out")
			}
			return
		}
		if sse, ok := startSSE(c); ok {
			h.finish(c, uid, sse, st, res)
		}
		return
	}

	sse, ok := startSSE(c)
	if !ok {
		st.Cancel()
		for range chunks {
		}
		<-st.Done()
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, "streaming not supported")
		return
	}
	sse.send("chunk", gin.H{"type": "chunk", "delta": first})

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case delta, open := <-chunks:
			if !open {
				h.finish(c, uid, sse, st, <-st.Done())
				return
			}
			sse.send("chunk", gin.H{"type": "chunk", "delta": delta})

		case <-ticker.C:
			sse.send("ping", gin.H{"type": "ping", "ts": time.Now().Unix()})
		}
	}
}

// finish writes the terminal event. A stream without a done event is
// incomplete from the client's point of view.
func (h *Handler) finish(c *gin.Context, uid uint64, sse *sseWriter, st *chat.Stream, res chat.Result) {
	switch res.State {
	case chat.StateDone:
		sse.send("done", gin.H{
			"type":            "done",
			"model":           res.Model,
			"user_message_id": st.UserMessage.ID,
		})
	case chat.StateFailed:
		e := h.classify(c, uid, res.Err)
		sse.send("error", gin.H{"type": "error", "code": e.Code, "message": e.Message})
	case chat.StateAborted:
		if c.Request.Context().Err() == nil {
			sse.send("error", gin.H{"type": "error", "code": common.CodeUpstream, "message": "generation timed out"})
		}
	}
}

func (h *Handler) ListMessages(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		h.fail(c, uid, err)
		return
	}
	common.OK(c, gin.H{"messages": msgs})
}

// EnqueueChat stores the turn and queues its generation for the worker.
func (h *Handler) EnqueueChat(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, common.CodeIdempotencyKey, "idempotency key too long")
		return
	}

	j, created, err := h.ChatSvc.EnqueueGeneration(c.Request.Context(), uid, req, idempoKey)
	if err != nil {
		if e := h.classify(c, uid, err); e.Code == common.CodeInternal {
			common.Fail(c, http.StatusInternalServerError, common.CodeEnqueue, "enqueue failed")
			return
		}
		h.fail(c, uid, err)
		return
	}

	status := http.StatusAccepted
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"code":    0,
		"message": "ok",
		"data":    gin.H{"job_id": j.ID, "created": created},
	})
}

func (h *Handler) GetChatJob(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, common.CodeValidation, "job_id required")
		return
	}

	j, err := h.ChatSvc.GetJob(c.Request.Context(), uid, jobID)
	if err != nil {
		h.fail(c, uid, err)
		return
	}

	common.OK(c, gin.H{
		"job": gin.H{
			"id":                j.ID,
			"project_id":        j.ProjectID,
			"model":             j.Model,
			"status":            j.Status,
			"user_message_id":   j.UserMessageID,
			"result_message_id": j.ResultMessageID,
			"error":             j.Error,
			"created_at":        j.CreatedAt,
			"updated_at":        j.UpdatedAt,
		},
	})
}
