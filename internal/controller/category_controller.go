package controller

import (
	"net/http"

	"github.com/alimikegami/point-of-sales/catalog-service/internal/dto"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/service"
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/errs"
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/response"
	"github.com/labstack/echo/v4"
)

type CategoryController struct {
	service        service.CategoryService
	productService service.ProductService
}

func CreateCategoryController(e *echo.Group, service service.CategoryService, productService service.ProductService, isLoggedIn echo.MiddlewareFunc) {
	c := CategoryController{
		service:        service,
		productService: productService,
	}
	e.POST("/categories", c.AddCategory, isLoggedIn)
	e.GET("/categories", c.GetCategories)
	e.GET("/categories/tree", c.GetCategoryTree)
	e.GET("/categories/:id", c.GetCategoryByID)
	e.GET("/categories/:id/descendants", c.ListDescendantCategories)
	e.GET("/categories/:id/products/count", c.CountProducts)
	e.GET("/categories/:id/products", c.SearchProducts)
	e.PUT("/categories/:id", c.UpdateCategory, isLoggedIn)
	e.DELETE("/categories/:id", c.DeleteCategory, isLoggedIn)
}

func (c *CategoryController) AddCategory(e echo.Context) error {
	actor, err := actorFromContext(e)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	payload := dto.CategoryRequest{}
	if err := bindAndValidate(e, "AddCategory", &payload); err != nil {
		return writeError(e, err)
	}

	payload.Image, err = formFile(e, "image")
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	res, err := c.service.AddCategory(e.Request().Context(), actor, payload)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponseWithStatus(e, http.StatusCreated, "Category created", res)
}

func (c *CategoryController) GetCategories(e echo.Context) error {
	payload := dto.CategoryListRequest{}

	if e.QueryParams().Has("parent") {
		parent := e.QueryParam("parent")
		payload.Parent = &parent
	}

	includeProducts, err := optionalBool(e.QueryParam("includeProducts"))
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}
	payload.IncludeProducts = includeProducts != nil && *includeProducts

	includeInactive, err := optionalBool(e.QueryParam("includeInactive"))
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}
	payload.IncludeInactive = includeInactive != nil && *includeInactive

	res, err := c.service.GetCategories(e.Request().Context(), payload)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "", res)
}

func (c *CategoryController) GetCategoryTree(e echo.Context) error {
	res, err := c.service.GetCategoryTree(e.Request().Context(), e.QueryParam("root"))
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "", res)
}

func (c *CategoryController) GetCategoryByID(e echo.Context) error {
	res, err := c.service.GetCategoryByID(e.Request().Context(), e.Param("id"))
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "", res)
}

func (c *CategoryController) ListDescendantCategories(e echo.Context) error {
	res, err := c.service.ListDescendantCategories(e.Request().Context(), e.Param("id"))
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "", res)
}

func (c *CategoryController) CountProducts(e echo.Context) error {
	includeDescendants, err := optionalBool(e.QueryParam("includeDescendants"))
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	count, err := c.productService.CountProducts(e.Request().Context(), e.Param("id"), includeDescendants != nil && *includeDescendants)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "", map[string]int64{"count": count})
}

func (c *CategoryController) SearchProducts(e echo.Context) error {
	payload, err := productSearchRequest(e)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	res, err := c.productService.SearchProductsUnderCategory(e.Request().Context(), e.Param("id"), payload)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "", res)
}

func (c *CategoryController) UpdateCategory(e echo.Context) error {
	actor, err := actorFromContext(e)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	form, err := e.FormParams()
	if err != nil {
		return response.WriteErrorResponse(e, errs.ErrClient, nil)
	}

	payload := dto.CategoryUpdateRequest{}
	if values, ok := form["name"]; ok && len(values) > 0 {
		payload.Name = &values[0]
	}
	if values, ok := form["parent"]; ok && len(values) > 0 {
		payload.Parent = &values[0]
	}
	if payload.IsActive, err = optionalBool(form.Get("isActive")); err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	payload.Image, err = formFile(e, "image")
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	res, err := c.service.UpdateCategory(e.Request().Context(), actor, e.Param("id"), payload)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "Category updated", res)
}

func (c *CategoryController) DeleteCategory(e echo.Context) error {
	actor, err := actorFromContext(e)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	err = c.service.DeleteCategory(e.Request().Context(), actor, e.Param("id"))
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "Category deleted", nil)
}
