package controller

import (
	"net/http"

	"github.com/alimikegami/point-of-sales/catalog-service/internal/dto"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/service"
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/response"
	"github.com/labstack/echo/v4"
)

type ProductController struct {
	service service.ProductService
}

func CreateProductController(e *echo.Group, service service.ProductService, isLoggedIn echo.MiddlewareFunc) {
	c := ProductController{
		service: service,
	}
	e.POST("/products", c.AddProduct, isLoggedIn)
	e.GET("/products", c.SearchProducts)
	e.PUT("/products/stock", c.DecreaseProductsStock, isLoggedIn)
	e.GET("/products/:id", c.GetProductByID)
	e.PUT("/products/:id", c.UpdateProduct, isLoggedIn)
	e.DELETE("/products/:id", c.DeleteProduct, isLoggedIn)
	e.PUT("/products/:id/category", c.AssignProductToCategory, isLoggedIn)
	e.PUT("/products/:id/verification", c.VerifyProduct, isLoggedIn)
}

func (c *ProductController) AddProduct(e echo.Context) error {
	actor, err := actorFromContext(e)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	payload := dto.ProductRequest{}
	if err := bindAndValidate(e, "AddProduct", &payload); err != nil {
		return writeError(e, err)
	}

	photos, err := formFiles(e, "photos")
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	res, err := c.service.AddProduct(e.Request().Context(), actor, payload, photos)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponseWithStatus(e, http.StatusCreated, "Product created", res)
}

func (c *ProductController) SearchProducts(e echo.Context) error {
	payload, err := productSearchRequest(e)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	res, err := c.service.SearchProductsUnderCategory(e.Request().Context(), e.QueryParam("category"), payload)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "", res)
}

func (c *ProductController) GetProductByID(e echo.Context) error {
	res, err := c.service.GetProductByID(e.Request().Context(), e.Param("id"))
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "", res)
}

func (c *ProductController) UpdateProduct(e echo.Context) error {
	actor, err := actorFromContext(e)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	payload := dto.ProductUpdateRequest{}
	if err := bindAndValidate(e, "UpdateProduct", &payload); err != nil {
		return writeError(e, err)
	}

	res, err := c.service.UpdateProduct(e.Request().Context(), actor, e.Param("id"), payload)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "Product updated", res)
}

func (c *ProductController) DeleteProduct(e echo.Context) error {
	actor, err := actorFromContext(e)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	err = c.service.DeleteProduct(e.Request().Context(), actor, e.Param("id"))
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "Product deleted", nil)
}

func (c *ProductController) AssignProductToCategory(e echo.Context) error {
	actor, err := actorFromContext(e)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	payload := dto.AssignCategoryRequest{}
	if err := bindAndValidate(e, "AssignProductToCategory", &payload); err != nil {
		return writeError(e, err)
	}

	err = c.service.AssignProductToCategory(e.Request().Context(), actor, e.Param("id"), payload.CategoryID)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "Product category updated", nil)
}

func (c *ProductController) VerifyProduct(e echo.Context) error {
	actor, err := actorFromContext(e)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	payload := dto.ProductVerificationRequest{}
	if err := bindAndValidate(e, "VerifyProduct", &payload); err != nil {
		return writeError(e, err)
	}

	err = c.service.VerifyProduct(e.Request().Context(), actor, e.Param("id"), *payload.Verified)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "", nil)
}

func (c *ProductController) DecreaseProductsStock(e echo.Context) error {
	payload := dto.OrderRequest{}
	if err := bindAndValidate(e, "DecreaseProductsStock", &payload); err != nil {
		return writeError(e, err)
	}

	err := c.service.DecreaseProductsStock(e.Request().Context(), payload)
	if err != nil {
		return response.WriteErrorResponse(e, err, nil)
	}

	return response.WriteSuccessResponse(e, "", nil)
}
