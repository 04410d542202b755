package handlers

import (
	"github.com/gin-gonic/gin"
	"ircrelay/pkg/logger"
	"net/http"
)

// Status is a snapshot of the relay connection.
type Status struct {
	State     string   `json:"state"`
	Server    string   `json:"server,omitempty"`
	Nick      string   `json:"nick,omitempty"`
	Providers []string `json:"providers"`
}

type StatusFunc func() Status

type Handlers struct {
	log    logger.Logger
	status StatusFunc
}

func New(log logger.Logger, status StatusFunc) *Handlers {
	return &Handlers{
		log:    log,
		status: status,
	}
}

// Healthz answers 200 while registered on the server and 503 otherwise.
func (h *Handlers) Healthz(c *gin.Context) {
	s := h.status()
	if s.Providers == nil {
		s.Providers = []string{}
	}

	code := http.StatusOK
	if s.State != "registered" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, s)
}
