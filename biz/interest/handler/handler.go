// Package handler provides interest taxonomy HTTP handlers.
package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/ncobase/ncore/net/resp"

	"github.com/sohan284/social-media-go/biz/interest/service"
	"github.com/sohan284/social-media-go/biz/interest/structs"
)

type Handler struct {
	service *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

func (h *Handler) HandleListCategories(c *gin.Context) {
	categories, err := h.service.ListCategories(c.Request.Context())
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to list categories"))
		return
	}
	resp.Success(c.Writer, categories)
}

func (h *Handler) HandleGetCategory(c *gin.Context) {
	category, err := h.service.GetCategory(c.Request.Context(), c.Param("category_id"))
	if err != nil {
		if errors.Is(err, service.ErrCategoryNotFound) {
			resp.Fail(c.Writer, resp.NotFound("category not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to get category"))
		return
	}
	resp.Success(c.Writer, category)
}

func (h *Handler) HandleCreateCategory(c *gin.Context) {
	var req structs.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	category, err := h.service.CreateCategory(c.Request.Context(), &req)
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to create category"))
		return
	}
	resp.WithStatusCode(c.Writer, 201, category)
}

func (h *Handler) HandleUpdateCategory(c *gin.Context) {
	var req structs.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	category, err := h.service.UpdateCategory(c.Request.Context(), c.Param("category_id"), &req)
	if err != nil {
		if errors.Is(err, service.ErrCategoryNotFound) {
			resp.Fail(c.Writer, resp.NotFound("category not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to update category"))
		return
	}
	resp.Success(c.Writer, category)
}

func (h *Handler) HandleDeleteCategory(c *gin.Context) {
	if err := h.service.DeleteCategory(c.Request.Context(), c.Param("category_id")); err != nil {
		if errors.Is(err, service.ErrCategoryNotFound) {
			resp.Fail(c.Writer, resp.NotFound("category not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to delete category"))
		return
	}
	resp.WithStatusCode(c.Writer, 204)
}

func (h *Handler) HandleCreateSubCategory(c *gin.Context) {
	var req structs.CreateSubCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	sub, err := h.service.CreateSubCategory(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrCategoryNotFound) {
			resp.Fail(c.Writer, resp.NotFound("category not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to create subcategory"))
		return
	}
	resp.WithStatusCode(c.Writer, 201, sub)
}

func (h *Handler) HandleUpdateSubCategory(c *gin.Context) {
	var req structs.UpdateSubCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	sub, err := h.service.UpdateSubCategory(c.Request.Context(), c.Param("subcategory_id"), &req)
	if err != nil {
		if errors.Is(err, service.ErrSubCategoryNotFound) {
			resp.Fail(c.Writer, resp.NotFound("subcategory not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to update subcategory"))
		return
	}
	resp.Success(c.Writer, sub)
}

func (h *Handler) HandleDeleteSubCategory(c *gin.Context) {
	if err := h.service.DeleteSubCategory(c.Request.Context(), c.Param("subcategory_id")); err != nil {
		if errors.Is(err, service.ErrSubCategoryNotFound) {
			resp.Fail(c.Writer, resp.NotFound("subcategory not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to delete subcategory"))
		return
	}
	resp.WithStatusCode(c.Writer, 204)
}
