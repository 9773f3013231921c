package controller

import (
	"errors"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/alimikegami/point-of-sales/catalog-service/internal/domain"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/dto"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/service"
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/errs"
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/response"
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/utils"
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/validator"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

func actorFromContext(e echo.Context) (domain.Actor, error) {
	user, err := utils.ExtractTokenUser(e)
	if err != nil {
		return domain.Actor{}, errs.ErrNotLoggedIn
	}

	return domain.Actor{
		UserID:         user.UserID,
		Role:           domain.Role(user.Role),
		VendorApproved: user.VendorStatus == domain.VendorStatusApproved,
	}, nil
}

// bindAndValidate binds the request into payload and runs the struct validator.
func bindAndValidate(e echo.Context, component string, payload interface{}) error {
	if err := e.Bind(payload); err != nil {
		log.Ctx(e.Request().Context()).Warn().Err(err).Str("component", component).Msg("")
		return errs.ErrClient
	}

	return e.Validate(payload)
}

// writeError is response.WriteErrorResponse plus the per-field list of a failed validation.
func writeError(e echo.Context, err error) error {
	var fieldErrs *validator.FieldErrors
	if errors.As(err, &fieldErrs) {
		return response.WriteErrorResponse(e, err, fieldErrs.Fields())
	}
	return response.WriteErrorResponse(e, err, nil)
}

func readUpload(header *multipart.FileHeader) (dto.FileUpload, error) {
	file, err := header.Open()
	if err != nil {
		return dto.FileUpload{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, service.MaxImageSize+1))
	if err != nil {
		return dto.FileUpload{}, err
	}

	return dto.FileUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get(echo.HeaderContentType),
		Data:        data,
	}, nil
}

// formFile returns the uploaded file under field, or nil when none was sent.
func formFile(e echo.Context, field string) (*dto.FileUpload, error) {
	header, err := e.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, errs.ErrClient
	}

	upload, err := readUpload(header)
	if err != nil {
		return nil, errs.ErrClient
	}

	return &upload, nil
}

func formFiles(e echo.Context, field string) ([]dto.FileUpload, error) {
	form, err := e.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, errs.ErrClient
	}

	uploads := make([]dto.FileUpload, 0, len(form.File[field]))
	for _, header := range form.File[field] {
		upload, err := readUpload(header)
		if err != nil {
			return nil, errs.ErrClient
		}
		uploads = append(uploads, upload)
	}

	return uploads, nil
}

func optionalBool(value string) (*bool, error) {
	if value == "" {
		return nil, nil
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return nil, errs.ErrClient
	}
	return &parsed, nil
}

func optionalFloat(value string) (*float64, error) {
	if value == "" {
		return nil, nil
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return nil, errs.ErrClient
	}
	return &parsed, nil
}

func productSearchRequest(e echo.Context) (req dto.ProductSearchRequest, err error) {
	err = echo.QueryParamsBinder(e).
		Int("page", &req.Page).
		Int("limit", &req.Limit).
		String("q", &req.Q).
		String("vendor", &req.Vendor).
		String("sort", &req.Sort).
		BindError()
	if err != nil {
		return req, errs.ErrClient
	}

	if req.MinPrice, err = optionalFloat(e.QueryParam("minPrice")); err != nil {
		return req, err
	}
	if req.MaxPrice, err = optionalFloat(e.QueryParam("maxPrice")); err != nil {
		return req, err
	}
	if req.InStock, err = optionalBool(e.QueryParam("inStock")); err != nil {
		return req, err
	}
	if req.Verified, err = optionalBool(e.QueryParam("verified")); err != nil {
		return req, err
	}

	return req, nil
}
