package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/dispatch"
)

type CommandHandler struct {
	dispatcher *dispatch.Dispatcher
}

func NewCommandHandler(d *dispatch.Dispatcher) *CommandHandler {
	return &CommandHandler{dispatcher: d}
}

// POST /api/v1/commands
// The HTTP status is 200 whenever an envelope could be produced; failures
// live in the envelope's success/message fields. Only an unparseable body is
// a 400.
func (h *CommandHandler) Execute(c *gin.Context) {
	var req dispatch.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dispatch.Response{
			Success: false,
			Message: "invalid request body: " + err.Error(),
		})
		return
	}

	resp := h.dispatcher.Dispatch(c.Request.Context(), req)
	c.JSON(http.StatusOK, resp)
}
