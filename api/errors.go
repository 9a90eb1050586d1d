package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/Domenick1991/zeromonos/internal/domain"
	"github.com/Domenick1991/zeromonos/internal/service/booking"
	"github.com/Domenick1991/zeromonos/internal/service/municipality"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// classify maps a service error to an HTTP status and a client-safe message.
func classify(err error) (int, errorResponse) {
	var validation *domain.ValidationError
	var transition *domain.InvalidTransitionError

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, errorResponse{Error: validation.Error(), Field: validation.Field}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: domain.ErrNotFound.Error()}
	case errors.As(err, &transition):
		return http.StatusConflict, errorResponse{Error: transition.Error()}
	case errors.Is(err, booking.ErrSlotBusy):
		return http.StatusServiceUnavailable, errorResponse{Error: booking.ErrSlotBusy.Error()}
	case errors.Is(err, municipality.ErrUnavailable):
		return http.StatusBadGateway, errorResponse{Error: municipality.ErrUnavailable.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
	}
}

func writeError(c *gin.Context, err error) {
	status, body := classify(err)
	logFailure(c, status, err)
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}
	c.AbortWithStatusJSON(status, body)
}

// writeTextError is used by the staff status endpoint, which answers in plain text.
func writeTextError(c *gin.Context, err error) {
	status, body := classify(err)
	logFailure(c, status, err)
	c.Abort()
	c.String(status, body.Error)
}

func logFailure(c *gin.Context, status int, err error) {
	if status < http.StatusInternalServerError {
		return
	}
	log.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
}

// bindError turns a gin binding failure into a field-level validation error.
func bindError(err error, req any) *domain.ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewValidationError("", "malformed request body")
	}

	fe := verrs[0]
	field := jsonFieldName(req, fe.StructField())
	switch fe.Tag() {
	case "required":
		return domain.NewValidationError(field, "is required")
	case "max":
		return domain.NewValidationError(field, fmt.Sprintf("must have at most %s characters", fe.Param()))
	default:
		return domain.NewValidationError(field, "is invalid")
	}
}

func jsonFieldName(req any, structField string) string {
	t := reflect.TypeOf(req)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	f, ok := t.FieldByName(structField)
	if !ok {
		return structField
	}
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return structField
	}
	return name
}
