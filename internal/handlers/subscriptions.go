package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"reprography-backend/internal/models"
)

// TokenResolver resolves the user behind a Supabase access token.
type TokenResolver interface {
	UserIDForToken(accessToken string) (string, error)
}

// SubscriptionStore persists push registrations, one per user.
type SubscriptionStore interface {
	UpsertPushSubscription(userID, subscription string) error
}

type SubscriptionsHandler struct {
	resolver TokenResolver
	store    SubscriptionStore
	logger   *zap.Logger
}

func NewSubscriptionsHandler(resolver TokenResolver, store SubscriptionStore, logger *zap.Logger) *SubscriptionsHandler {
	return &SubscriptionsHandler{
		resolver: resolver,
		store:    store,
		logger:   logger,
	}
}

// Subscribe godoc
// @Summary     Register a push subscription
// @Description Stores the browser's push registration for the authenticated user, replacing any
// @Description prior one. The identity comes from the access token, never from the request body.
// @Tags        notifications
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.SubscribeRequest true "Push subscription payload"
// @Success     200 {object} models.SubscribeResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /notifications/subscribe [post]
func (h *SubscriptionsHandler) Subscribe(c *gin.Context) {
	token, ok := accessToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "no session found"})
		return
	}

	userID, err := h.resolver.UserIDForToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "user not authenticated",
			Message: err.Error(),
		})
		return
	}

	var req models.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	if !isJSONObject(req.Subscription) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid subscription object"})
		return
	}

	if err := h.store.UpsertPushSubscription(userID, string(req.Subscription)); err != nil {
		h.logger.Error("failed to store push subscription",
			zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to store subscription"})
		return
	}

	c.JSON(http.StatusOK, models.SubscribeResponse{Success: true})
}

func accessToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// isJSONObject reports whether raw is a well-formed JSON object. The
// subscription blob is stored opaque, so this is the only validation done.
func isJSONObject(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var object map[string]interface{}
	if err := json.Unmarshal(raw, &object); err != nil {
		return false
	}
	return object != nil
}
