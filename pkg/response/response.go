package response

import (
	stderrors "errors"
	"net/http"

	"github.com/alimikegami/point-of-sales/catalog-service/pkg/errs"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
}

type ErrorResponse struct {
	Status  string      `json:"status"`
	Kind    string      `json:"kind"`
	Message string      `json:"message"`
	Errors  interface{} `json:"errors"`
}

func WriteSuccessResponse(c echo.Context, message string, data interface{}) error {
	return WriteSuccessResponseWithStatus(c, http.StatusOK, message, data)
}

func WriteSuccessResponseWithStatus(c echo.Context, statusCode int, message string, data interface{}) error {
	resp := SuccessResponse{}
	resp.Status = "success"
	resp.Data = data
	resp.Message = message

	return c.JSON(statusCode, resp)
}

func WriteErrorResponse(c echo.Context, err error, errors interface{}) error {
	statusCode := errs.GetErrorStatusCode(err)
	if statusCode >= http.StatusInternalServerError {
		log.Ctx(c.Request().Context()).Error().Err(unwrapCause(err)).Str("component", "WriteErrorResponse").Msg("")
	}

	resp := ErrorResponse{}
	resp.Status = "error"
	resp.Kind = errs.GetErrorKind(err)
	resp.Message = errs.GetErrorMessage(err)
	resp.Errors = errors

	return c.JSON(statusCode, resp)
}

func unwrapCause(err error) error {
	var infraErr *errs.InfrastructureError
	if stderrors.As(err, &infraErr) {
		return infraErr.Cause()
	}
	return err
}
