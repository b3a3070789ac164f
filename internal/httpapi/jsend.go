package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	jsendSuccess = "success"
	jsendFail    = "fail"
	jsendError   = "error"
)

// jsendResponse wraps every /api payload. "fail" is a client problem,
// "error" a server one; Code is only set on errors.
type jsendResponse struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func respond(c echo.Context, status int, body jsendResponse) error {
	if body.Status == jsendError {
		body.Code = status
	}
	return c.JSON(status, body)
}

func success(c echo.Context, data any) error {
	return successWithStatus(c, http.StatusOK, data)
}

func successWithStatus(c echo.Context, status int, data any) error {
	return respond(c, status, jsendResponse{Status: jsendSuccess, Data: data})
}

func fail(c echo.Context, status int, message string, data any) error {
	return respond(c, status, jsendResponse{Status: jsendFail, Message: message, Data: data})
}

// failValidation reports per-field problems, e.g. {"articles": "row 3: missing headline"}.
func failValidation(c echo.Context, problems map[string]string) error {
	return fail(c, http.StatusBadRequest, "Validation failed", echo.Map{"validation_errors": problems})
}

func failNotFound(c echo.Context, message string) error {
	return fail(c, http.StatusNotFound, message, nil)
}

func failUnavailable(c echo.Context, message string) error {
	return fail(c, http.StatusServiceUnavailable, message, nil)
}

func internalError(c echo.Context, message string) error {
	return respond(c, http.StatusInternalServerError, jsendResponse{Status: jsendError, Message: message})
}
