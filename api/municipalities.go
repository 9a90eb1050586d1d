package api

import (
	"net/http"

	"github.com/Domenick1991/zeromonos/internal/domain"
	"github.com/Domenick1991/zeromonos/internal/service/municipality"
	"github.com/gin-gonic/gin"
)

type MunicipalityHandler struct {
	service municipality.MunicipalityUseCase
}

func NewMunicipalityHandler(service municipality.MunicipalityUseCase) *MunicipalityHandler {
	return &MunicipalityHandler{service: service}
}

func (h *MunicipalityHandler) Register(router *gin.RouterGroup) {
	router.GET("/municipios", h.list)
	router.GET("/timeslots", h.timeSlots)
}

func (h *MunicipalityHandler) list(c *gin.Context) {
	names, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, names)
}

func (h *MunicipalityHandler) timeSlots(c *gin.Context) {
	c.JSON(http.StatusOK, domain.TimeSlots())
}
