// Package handler provides marketplace HTTP handlers.
package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ncobase/ncore/net/resp"
	"github.com/ncobase/ncore/paging"

	accounthandler "github.com/sohan284/social-media-go/core/account/handler"
	"github.com/sohan284/social-media-go/core/auth/middleware"

	"github.com/sohan284/social-media-go/biz/marketplace/service"
	"github.com/sohan284/social-media-go/biz/marketplace/structs"
)

type Handler struct {
	service *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

func (h *Handler) HandleCreateProduct(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	var req structs.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	product, err := h.service.CreateProduct(c.Request.Context(), userID, &req)
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to create product"))
		return
	}
	resp.WithStatusCode(c.Writer, 201, product)
}

func (h *Handler) HandleGetProduct(c *gin.Context) {
	product, err := h.service.GetProduct(c.Request.Context(), c.Param("product_id"))
	if err != nil {
		h.fail(c, err, "failed to get product")
		return
	}
	resp.Success(c.Writer, product)
}

func (h *Handler) HandleListProducts(c *gin.Context) {
	categoryID := c.Query("category_id")
	query := c.Query("search")
	params := accounthandler.PageParams(c)

	result, err := paging.Paginate(params, func(cursor string, limit int) ([]*structs.Product, int, string, error) {
		products, err := h.service.ListProducts(c.Request.Context(), categoryID, query,
			accounthandler.CursorTime(cursor), limit)
		if err != nil {
			return nil, 0, "", err
		}
		next := accounthandler.NextCursor(products, limit, func(p *structs.Product) (string, time.Time) {
			return p.ID, p.CreatedAt
		})
		return products, 0, next, nil
	})
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to list products"))
		return
	}

	resp.Success(c.Writer, result)
}

func (h *Handler) HandleListMyProducts(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}
	params := accounthandler.PageParams(c)

	result, err := paging.Paginate(params, func(cursor string, limit int) ([]*structs.Product, int, string, error) {
		products, err := h.service.ListSellerProducts(c.Request.Context(), userID,
			accounthandler.CursorTime(cursor), limit)
		if err != nil {
			return nil, 0, "", err
		}
		next := accounthandler.NextCursor(products, limit, func(p *structs.Product) (string, time.Time) {
			return p.ID, p.CreatedAt
		})
		return products, 0, next, nil
	})
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to list products"))
		return
	}

	resp.Success(c.Writer, result)
}

func (h *Handler) HandleUpdateProduct(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	var req structs.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	product, err := h.service.UpdateProduct(c.Request.Context(), c.Param("product_id"), userID, &req)
	if err != nil {
		h.fail(c, err, "failed to update product")
		return
	}
	resp.Success(c.Writer, product)
}

func (h *Handler) HandleDeleteProduct(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	err := h.service.DeleteProduct(c.Request.Context(), c.Param("product_id"), userID, middleware.IsAdmin(c))
	if err != nil {
		h.fail(c, err, "failed to delete product")
		return
	}
	resp.WithStatusCode(c.Writer, 204)
}

func (h *Handler) HandleCreatePlan(c *gin.Context) {
	var req structs.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	plan, err := h.service.CreatePlan(c.Request.Context(), &req)
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to create plan"))
		return
	}
	resp.WithStatusCode(c.Writer, 201, plan)
}

func (h *Handler) HandleListPlans(c *gin.Context) {
	plans, err := h.service.ListPlans(c.Request.Context())
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to list plans"))
		return
	}
	resp.Success(c.Writer, plans)
}

func (h *Handler) HandleDeactivatePlan(c *gin.Context) {
	if err := h.service.DeactivatePlan(c.Request.Context(), c.Param("plan_id")); err != nil {
		h.fail(c, err, "failed to deactivate plan")
		return
	}
	resp.WithStatusCode(c.Writer, 204)
}

func (h *Handler) HandleSubscribe(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	var req structs.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	payment, err := h.service.Subscribe(c.Request.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanNotFound):
			resp.Fail(c.Writer, resp.NotFound("plan not found"))
		case errors.Is(err, service.ErrAlreadySubscribed):
			resp.Fail(c.Writer, resp.BadRequest("subscription already active"))
		default:
			resp.Fail(c.Writer, resp.InternalServer("failed to start subscription"))
		}
		return
	}

	resp.WithStatusCode(c.Writer, 201, payment)
}

func (h *Handler) HandleCancelSubscription(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	err := h.service.CancelSubscription(c.Request.Context(), c.Param("subscription_id"), userID)
	if err != nil {
		if errors.Is(err, service.ErrSubscriptionNotFound) {
			resp.Fail(c.Writer, resp.NotFound("subscription not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to cancel subscription"))
		return
	}
	resp.WithStatusCode(c.Writer, 204)
}

// HandlePaymentWebhook is the provider callback. The route is mounted
// without auth middleware, so nothing identity-related is read here.
func (h *Handler) HandlePaymentWebhook(c *gin.Context) {
	var req structs.WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c.Writer, resp.BadRequest(err.Error()))
		return
	}

	if err := h.service.HandleWebhook(c.Request.Context(), &req); err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			resp.Fail(c.Writer, resp.NotFound("payment not found"))
			return
		}
		resp.Fail(c.Writer, resp.InternalServer("failed to process webhook"))
		return
	}
	resp.Success(c.Writer, map[string]any{"message": "processed"})
}

func (h *Handler) HandleListPayments(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}
	params := accounthandler.PageParams(c)

	result, err := paging.Paginate(params, func(cursor string, limit int) ([]*structs.Payment, int, string, error) {
		payments, err := h.service.ListPayments(c.Request.Context(), userID,
			accounthandler.CursorTime(cursor), limit)
		if err != nil {
			return nil, 0, "", err
		}
		next := accounthandler.NextCursor(payments, limit, func(p *structs.Payment) (string, time.Time) {
			return p.ID, p.CreatedAt
		})
		return payments, 0, next, nil
	})
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to list payments"))
		return
	}

	resp.Success(c.Writer, result)
}

func (h *Handler) HandleQuotaStatus(c *gin.Context) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		resp.Fail(c.Writer, resp.UnAuthorized("not authenticated"))
		return
	}

	status, err := h.service.QuotaStatus(c.Request.Context(), userID)
	if err != nil {
		resp.Fail(c.Writer, resp.InternalServer("failed to get quota status"))
		return
	}
	resp.Success(c.Writer, status)
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		resp.Fail(c.Writer, resp.NotFound("product not found"))
	case errors.Is(err, service.ErrPlanNotFound):
		resp.Fail(c.Writer, resp.NotFound("plan not found"))
	case errors.Is(err, service.ErrNotSeller):
		resp.Fail(c.Writer, resp.Forbidden("not the product seller"))
	default:
		resp.Fail(c.Writer, resp.InternalServer(fallback))
	}
}
