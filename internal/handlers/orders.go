package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"reprography-backend/internal/config"
	"reprography-backend/internal/middleware"
	"reprography-backend/internal/models"
	"reprography-backend/internal/pricing"
	"reprography-backend/internal/services"
)

type OrdersHandler struct {
	service *services.OrderService
	cfg     config.Config
	logger  *zap.Logger
}

func NewOrdersHandler(service *services.OrderService, cfg config.Config, logger *zap.Logger) *OrdersHandler {
	return &OrdersHandler{
		service: service,
		cfg:     cfg,
		logger:  logger,
	}
}

// CreateOrders godoc
// @Summary     Submit a batch of print orders
// @Description Uploads one or more files with a shared options record and creates one order per file.
// @Description Authenticated callers own their orders; anonymous callers get a durable guest session
// @Description cookie so later submissions and listings find the same orders.
// @Tags        orders
// @Accept      multipart/form-data
// @Produce     json
// @Param       files formData file true "Files to print (multiple allowed)"
// @Param       options formData string true "Print options JSON: {quantity, paper_size, color_mode}"
// @Success     201 {object} models.SubmitResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /orders [post]
func (h *OrdersHandler) CreateOrders(c *gin.Context) {
	owner := h.resolveOwner(c, true)

	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "failed to parse multipart form",
			Message: err.Error(),
		})
		return
	}

	form := c.Request.MultipartForm
	if form == nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "multipart form is required"})
		return
	}

	var fileHeaders []*multipart.FileHeader
	for _, fieldName := range []string{"files", "file"} {
		if f := form.File[fieldName]; len(f) > 0 {
			fileHeaders = f
			break
		}
	}
	if len(fileHeaders) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "no files uploaded",
			Message: "provide at least one file in the \"files\" form field",
		})
		return
	}

	var options models.OrderOptions
	if err := json.Unmarshal([]byte(c.PostForm("options")), &options); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid options",
			Message: err.Error(),
		})
		return
	}
	if _, err := pricing.Cost(options.Quantity, options.PaperSize, options.ColorMode); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid options",
			Message: err.Error(),
		})
		return
	}

	uploads := make([]services.FileUpload, 0, len(fileHeaders))
	var readErrors []models.FileErrorInfo
	for _, header := range fileHeaders {
		data, err := readFile(header)
		if err != nil {
			readErrors = append(readErrors, models.FileErrorInfo{
				Filename: header.Filename,
				Error:    err.Error(),
				Stage:    "read",
			})
			continue
		}
		uploads = append(uploads, services.FileUpload{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	var result services.SubmitResult
	if len(uploads) > 0 {
		var err error
		result, err = h.service.SubmitBatch(owner, uploads, options)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid options",
				Message: err.Error(),
			})
			return
		}
	}

	response := models.SubmitResponse{
		Created: len(result.Orders),
		Orders:  make([]models.OrderResponse, 0, len(result.Orders)),
		Errors:  append(readErrors, result.Errors...),
	}
	for _, order := range result.Orders {
		response.Orders = append(response.Orders, toOrderResponse(order, ""))
	}

	c.JSON(http.StatusCreated, response)
}

// ListOrders godoc
// @Summary     List the caller's orders
// @Description Returns the authenticated user's orders, or the guest session's orders when no
// @Description identity is present. The two partitions never mix.
// @Tags        orders
// @Produce     json
// @Success     200 {object} models.OrderListResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /orders [get]
func (h *OrdersHandler) ListOrders(c *gin.Context) {
	owner := h.resolveOwner(c, false)

	orders, err := h.service.ListForOwner(owner)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to list orders",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, toOrderListResponse(orders, nil))
}

// AdminListOrders godoc
// @Summary     List all orders (staff)
// @Description Returns every order with a public download URL for each file.
// @Tags        admin
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.OrderListResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /admin/orders [get]
func (h *OrdersHandler) AdminListOrders(c *gin.Context) {
	orders, err := h.service.ListAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to list orders",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, toOrderListResponse(orders, h.service.FileURL))
}

// UpdateOrderStatus godoc
// @Summary     Update an order's status (staff)
// @Description Sets the order's status. When the new status is "completed" the owner is sent a
// @Description best-effort push notification; notification problems never fail the update.
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       order_id path string true "Order ID (UUID)"
// @Param       request body models.UpdateOrderStatusRequest true "New status"
// @Success     200 {object} models.UpdateOrderStatusResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /admin/orders/{order_id} [patch]
func (h *OrdersHandler) UpdateOrderStatus(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("order_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid order id"})
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}
	if !models.ValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid status",
			Message: "status must be one of: pending, printing, completed",
		})
		return
	}

	order, err := h.service.UpdateStatus(orderID, req.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to update order",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.UpdateOrderStatusResponse{
		ID:     order.ID.String(),
		Status: order.Status,
	})
}

// resolveOwner determines who the request belongs to: the authenticated
// user when the optional-auth middleware resolved one, else the guest
// session cookie. When mint is set and no cookie exists yet, a fresh token
// is minted and set with a multi-week lifetime so repeat requests from the
// same browser stay tied to the same orders.
func (h *OrdersHandler) resolveOwner(c *gin.Context, mint bool) services.Owner {
	if userID, exists := c.Get(middleware.UserIDKey); exists {
		return services.Owner{UserID: userID.(string)}
	}

	token, err := c.Cookie(h.cfg.GuestCookieName)
	if err != nil || token == "" {
		if !mint {
			return services.Owner{}
		}
		token = uuid.New().String()
		c.SetCookie(h.cfg.GuestCookieName, token, h.cfg.GuestCookieMaxAge, "/", "", false, true)
	}
	return services.Owner{GuestSessionID: token}
}

func readFile(header *multipart.FileHeader) ([]byte, error) {
	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}

func toOrderResponse(order models.Order, fileURL string) models.OrderResponse {
	return models.OrderResponse{
		ID:        order.ID.String(),
		FileName:  order.FileName,
		FileURL:   fileURL,
		Quantity:  order.Quantity,
		PaperSize: order.PaperSize,
		ColorMode: order.ColorMode,
		TotalCost: pricing.Round(order.TotalCost),
		Status:    order.Status,
		CreatedAt: order.CreatedAt,
	}
}

func toOrderListResponse(orders []models.Order, fileURL func(path string) string) models.OrderListResponse {
	response := models.OrderListResponse{Orders: make([]models.OrderResponse, 0, len(orders))}
	for _, order := range orders {
		url := ""
		if fileURL != nil {
			url = fileURL(order.FilePath)
		}
		response.Orders = append(response.Orders, toOrderResponse(order, url))
	}
	return response
}
