package in

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	sessiondto "devtrack/internal/modules/session/dto"
	sessionin "devtrack/internal/modules/session/port/in"
	apperrors "devtrack/internal/platform/errors"
)

// HTTPHandler exposes sessions as a JSON CRUD surface for the browser timer.
type HTTPHandler struct {
	usecase sessionin.Usecase
}

func NewHTTPHandler(usecase sessionin.Usecase) HTTPHandler {
	return HTTPHandler{usecase: usecase}
}

// Register mounts the session routes on api.
func (h HTTPHandler) Register(api gin.IRouter) {
	api.GET("/sessions", h.list)
	api.POST("/sessions", h.create)
	api.PUT("/sessions/:id", h.update)
	api.DELETE("/sessions/:id", h.delete)
	api.GET("/status", h.status)
}

func (h HTTPHandler) list(c *gin.Context) {
	sessions, err := h.usecase.ListSessions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h HTTPHandler) create(c *gin.Context) {
	fields, ok := bindFields(c)
	if !ok {
		return
	}
	session, err := h.usecase.CreateSession(c.Request.Context(), sessiondto.CreateSessionInput{Fields: fields})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h HTTPHandler) update(c *gin.Context) {
	fields, ok := bindFields(c)
	if !ok {
		return
	}
	session, err := h.usecase.UpdateSession(c.Request.Context(), sessiondto.UpdateSessionInput{ID: c.Param("id"), Fields: fields})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h HTTPHandler) delete(c *gin.Context) {
	if err := h.usecase.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h HTTPHandler) status(c *gin.Context) {
	status, err := h.usecase.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	body := gin.H{
		"active":           status.Active,
		"session":          nil,
		"elapsedSeconds":   status.ElapsedSeconds,
		"todaySeconds":     status.TodaySeconds,
		"todayMinutes":     status.TodayMinutes,
		"dailyGoal":        status.DailyGoal,
		"progress":         status.Progress,
		"remainingMinutes": status.RemainingMinutes,
		"goalAchieved":     status.GoalAchieved,
	}
	if status.Active {
		body["session"] = status.Session
	}
	c.JSON(http.StatusOK, body)
}

// bindFields decodes a JSON object body. An empty body is an empty object.
func bindFields(c *gin.Context) (map[string]any, bool) {
	fields := map[string]any{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, true
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON object"})
		return nil, false
	}
	return fields, true
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrInvalidInput), errors.Is(err, apperrors.ErrInvalidSession):
		status = http.StatusBadRequest
	}
	message := err.Error()
	if status == http.StatusNotFound {
		message = "Session not found"
	}
	c.JSON(status, gin.H{"error": message})
}
