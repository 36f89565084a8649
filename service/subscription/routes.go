package subscription

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/finfx/finfx-server/cmd/models"
	"github.com/finfx/finfx-server/cmd/utils"
)

// SubscriptionResponse extends the stored record with the derived expiry
// flag, so a row whose sweep has not run yet still reads correctly.
type SubscriptionResponse struct {
	models.BotSubscription
	IsExpired bool `json:"isExpired"`
}

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/subscriptions", utils.AuthMiddleware(h.handleCreateSubscription)).Methods("POST")
	router.HandleFunc("/subscriptions", utils.AuthMiddleware(h.handleGetSubscriptions)).Methods("GET")
	router.HandleFunc("/subscriptions/check/{botId:[0-9]+}", utils.AuthMiddleware(h.handleCheckSubscription)).Methods("GET")
	router.HandleFunc("/subscriptions/{id:[0-9]+}", utils.AuthMiddleware(h.handleGetSubscription)).Methods("GET")
	router.HandleFunc("/subscriptions/{id:[0-9]+}", utils.AuthMiddleware(h.handleUpdateSubscription)).Methods("PUT")
	router.HandleFunc("/subscriptions/{id:[0-9]+}", utils.AuthMiddleware(h.handleDeleteSubscription)).Methods("DELETE")
}

// ExpireDue flips every live subscription whose expiry has passed to
// expired. A zero userID widens the statement to all users, a zero botID
// to all bots. Handlers run the scoped form before conflict checks and
// reads; the background sweep runs the global form.
func ExpireDue(db *gorm.DB, userID, botID uint, now time.Time) (int64, error) {
	query := db.Model(&models.BotSubscription{}).
		Where("status IN ? AND expires_at <= ?", []string{string(models.SubscriptionActive), string(models.SubscriptionPaused)}, now)
	if userID != 0 {
		query = query.Where("user_id = ?", userID)
	}
	if botID != 0 {
		query = query.Where("bot_id = ?", botID)
	}
	result := query.Update("status", models.SubscriptionExpired)
	return result.RowsAffected, result.Error
}

func (h *Handler) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var createRequest struct {
		UserID       *uint    `json:"userId"`
		BotID        *uint    `json:"botId"`
		BotPackageID uint     `json:"botPackageId"`
		LotSize      *float64 `json:"lotSize"`
		Status       string   `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&createRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}

	actorID, _ := utils.GetUserIDFromContext(r.Context())
	role, _ := utils.GetRoleFromContext(r.Context())

	// Subscribing another user is an administrative action.
	targetUserID := actorID
	if createRequest.UserID != nil && *createRequest.UserID != actorID {
		if role != models.RoleAdmin {
			utils.WriteFail(w, http.StatusForbidden, "Only admins can create subscriptions for other users", "admin-required")
			return
		}
		targetUserID = *createRequest.UserID
	}

	if createRequest.BotPackageID == 0 {
		utils.WriteFail(w, http.StatusBadRequest, "botPackageId is required", "validation-error")
		return
	}
	if createRequest.LotSize == nil {
		utils.WriteFail(w, http.StatusBadRequest, "lotSize is required", "validation-error")
		return
	}
	if *createRequest.LotSize < models.MinLotSize {
		utils.WriteFail(w, http.StatusBadRequest, "lotSize must be at least 0.1", "invalid-lot-size")
		return
	}

	status := models.SubscriptionActive
	if createRequest.Status != "" {
		status = models.SubscriptionStatus(createRequest.Status)
		if !models.ValidSubscriptionStatus(status) {
			utils.WriteFail(w, http.StatusBadRequest, "status must be one of active, paused, expired", "invalid-status")
			return
		}
	}

	var botPackage models.BotPackage
	if err := h.db.Preload("Package").First(&botPackage, createRequest.BotPackageID).Error; err != nil {
		utils.WriteFail(w, http.StatusNotFound, "Bot package not found", "bot-package-not-found")
		return
	}
	if botPackage.Package == nil {
		utils.WriteFail(w, http.StatusNotFound, "Package not found", "package-not-found")
		return
	}

	botID := botPackage.BotID
	if createRequest.BotID != nil && *createRequest.BotID != botID {
		utils.WriteFail(w, http.StatusBadRequest, "botId does not match the bot package", "validation-error")
		return
	}

	var targetUser models.User
	if err := h.db.First(&targetUser, targetUserID).Error; err != nil {
		utils.WriteNotFound(w, "User")
		return
	}

	now := time.Now()

	// Stale live rows must expire before the conflict check, otherwise a
	// lapsed subscription would block its own renewal.
	if _, err := ExpireDue(h.db, targetUserID, botID, now); err != nil {
		utils.WriteError(w, "reconcile before create", err)
		return
	}

	var liveCount int64
	err := h.db.Model(&models.BotSubscription{}).
		Where("user_id = ? AND bot_id = ? AND status IN ?", targetUserID, botID,
			[]string{string(models.SubscriptionActive), string(models.SubscriptionPaused)}).
		Count(&liveCount).Error
	if err != nil {
		utils.WriteError(w, "conflict check", err)
		return
	}
	if liveCount > 0 && status != models.SubscriptionExpired {
		utils.WriteFail(w, http.StatusConflict, "User already has an active subscription to this bot", "already-subscribed")
		return
	}

	subscription := models.BotSubscription{
		UserID:       targetUserID,
		BotID:        botID,
		BotPackageID: botPackage.ID,
		LotSize:      *createRequest.LotSize,
		Status:       status,
		SubscribedAt: now,
		ExpiresAt:    models.SubscriptionExpiry(now, botPackage.Package.Duration),
	}

	tx := h.db.Begin()

	// Referenced rows may vanish between validation and write, so their
	// existence is re-checked inside the insert transaction.
	var revalidate int64
	if err := tx.Model(&models.User{}).Where("id = ?", targetUserID).Count(&revalidate).Error; err != nil || revalidate == 0 {
		tx.Rollback()
		utils.WriteNotFound(w, "User")
		return
	}
	if err := tx.Model(&models.Bot{}).Where("id = ?", botID).Count(&revalidate).Error; err != nil || revalidate == 0 {
		tx.Rollback()
		utils.WriteFail(w, http.StatusNotFound, "Bot not found", "bot-not-found")
		return
	}
	if err := tx.Model(&models.BotPackage{}).Where("id = ?", botPackage.ID).Count(&revalidate).Error; err != nil || revalidate == 0 {
		tx.Rollback()
		utils.WriteFail(w, http.StatusNotFound, "Bot package not found", "bot-package-not-found")
		return
	}

	if err := tx.Create(&subscription).Error; err != nil {
		tx.Rollback()
		// The partial unique index closes the race two concurrent creates
		// can otherwise win together.
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE constraint") {
			utils.WriteFail(w, http.StatusConflict, "User already has an active subscription to this bot", "already-subscribed")
			return
		}
		utils.WriteError(w, "create subscription", err)
		return
	}

	if err := tx.Commit().Error; err != nil {
		utils.WriteError(w, "commit subscription create", err)
		return
	}

	if err := h.db.Preload("Bot").Preload("BotPackage.Package").First(&subscription, subscription.ID).Error; err != nil {
		utils.WriteError(w, "reload subscription", err)
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, "Subscription created successfully", map[string]interface{}{
		"subscription": SubscriptionResponse{BotSubscription: subscription, IsExpired: subscription.IsExpired(now)},
	})
}

func (h *Handler) handleGetSubscriptions(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := utils.ParsePagination(r)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, err.Error(), "invalid-pagination")
		return
	}

	actorID, _ := utils.GetUserIDFromContext(r.Context())
	role, _ := utils.GetRoleFromContext(r.Context())

	// Non-admins are always scoped to themselves.
	scopeUserID := actorID
	if userIDParam := r.URL.Query().Get("userId"); userIDParam != "" {
		filterID, parseErr := strconv.ParseUint(userIDParam, 10, 64)
		if parseErr != nil {
			utils.WriteFail(w, http.StatusBadRequest, "Invalid userId filter", "validation-error")
			return
		}
		if !utils.CanAccess(role, actorID, uint(filterID)) {
			utils.WriteFail(w, http.StatusForbidden, "Cannot list another user's subscriptions", "permission-denied")
			return
		}
		scopeUserID = uint(filterID)
	} else if role == models.RoleAdmin {
		scopeUserID = 0
	}

	now := time.Now()
	if _, err := ExpireDue(h.db, scopeUserID, 0, now); err != nil {
		utils.WriteError(w, "reconcile before list", err)
		return
	}

	query := h.db.Model(&models.BotSubscription{}).Preload("Bot").Preload("BotPackage.Package")
	if scopeUserID != 0 {
		query = query.Where("user_id = ?", scopeUserID)
	}

	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		if !models.ValidSubscriptionStatus(models.SubscriptionStatus(statusParam)) {
			utils.WriteFail(w, http.StatusBadRequest, "Invalid status filter", "invalid-status")
			return
		}
		query = query.Where("status = ?", statusParam)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.WriteError(w, "count subscriptions", err)
		return
	}

	var subscriptions []models.BotSubscription
	if err := query.Order("id DESC").Offset(utils.Offset(page, perPage)).Limit(perPage).Find(&subscriptions).Error; err != nil {
		utils.WriteError(w, "list subscriptions", err)
		return
	}

	responseSubscriptions := make([]SubscriptionResponse, 0, len(subscriptions))
	for _, sub := range subscriptions {
		responseSubscriptions = append(responseSubscriptions, SubscriptionResponse{
			BotSubscription: sub,
			IsExpired:       sub.IsExpired(now),
		})
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{
		"subscriptions":      responseSubscriptions,
		"page":               page,
		"perPage":            perPage,
		"totalPages":         utils.TotalPages(total, perPage),
		"totalSubscriptions": total,
	})
}

func (h *Handler) handleCheckSubscription(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	botID, err := strconv.ParseUint(vars["botId"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid bot ID", "validation-error")
		return
	}

	actorID, _ := utils.GetUserIDFromContext(r.Context())

	now := time.Now()
	if _, err := ExpireDue(h.db, actorID, uint(botID), now); err != nil {
		utils.WriteError(w, "reconcile before check", err)
		return
	}

	var count int64
	err = h.db.Model(&models.BotSubscription{}).
		Where("user_id = ? AND bot_id = ? AND status = ?", actorID, botID, models.SubscriptionActive).
		Count(&count).Error
	if err != nil {
		utils.WriteError(w, "check subscription", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{
		"subscribed": count > 0,
	})
}

// loadScoped fetches one subscription with the actor's visibility applied.
// Non-admins read foreign rows as not found.
func (h *Handler) loadScoped(r *http.Request, id uint64, preload bool) (*models.BotSubscription, error) {
	actorID, _ := utils.GetUserIDFromContext(r.Context())
	role, _ := utils.GetRoleFromContext(r.Context())

	query := h.db
	if preload {
		query = query.Preload("Bot").Preload("BotPackage.Package")
	}
	if role != models.RoleAdmin {
		query = query.Where("user_id = ?", actorID)
	}

	var subscription models.BotSubscription
	if err := query.First(&subscription, id).Error; err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (h *Handler) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid subscription ID", "validation-error")
		return
	}

	subscription, err := h.loadScoped(r, id, true)
	if err != nil {
		utils.WriteNotFound(w, "Subscription")
		return
	}

	now := time.Now()
	if subscription.Reconcile(now) {
		if err := h.db.Model(subscription).Update("status", subscription.Status).Error; err != nil {
			utils.WriteError(w, "persist reconciled status", err)
			return
		}
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{
		"subscription": SubscriptionResponse{BotSubscription: *subscription, IsExpired: subscription.IsExpired(now)},
	})
}

func (h *Handler) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid subscription ID", "validation-error")
		return
	}

	// Both fields are optional here. An empty update is a no-op, not an
	// error, unlike the other entity updates.
	var updateRequest struct {
		Status  *string  `json:"status"`
		LotSize *float64 `json:"lotSize"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}

	if updateRequest.Status != nil && !models.ValidSubscriptionStatus(models.SubscriptionStatus(*updateRequest.Status)) {
		utils.WriteFail(w, http.StatusBadRequest, "status must be one of active, paused, expired", "invalid-status")
		return
	}
	if updateRequest.LotSize != nil && *updateRequest.LotSize < models.MinLotSize {
		utils.WriteFail(w, http.StatusBadRequest, "lotSize must be at least 0.1", "invalid-lot-size")
		return
	}

	subscription, err := h.loadScoped(r, id, false)
	if err != nil {
		utils.WriteNotFound(w, "Subscription")
		return
	}

	now := time.Now()
	reconciled := subscription.Reconcile(now)

	// Expired is terminal. A lapsed subscription cannot be pushed back to
	// active or paused; renewal means creating a new record.
	if updateRequest.Status != nil {
		newStatus := models.SubscriptionStatus(*updateRequest.Status)
		if subscription.Status == models.SubscriptionExpired && newStatus != models.SubscriptionExpired {
			utils.WriteFail(w, http.StatusConflict, "Subscription has expired; create a new subscription instead", "subscription-expired")
			return
		}
		subscription.Status = newStatus
	}
	if updateRequest.LotSize != nil {
		subscription.LotSize = *updateRequest.LotSize
	}

	if reconciled || updateRequest.Status != nil || updateRequest.LotSize != nil {
		if err := h.db.Save(subscription).Error; err != nil {
			utils.WriteError(w, "update subscription", err)
			return
		}
	}

	if err := h.db.Preload("Bot").Preload("BotPackage.Package").First(subscription, subscription.ID).Error; err != nil {
		utils.WriteError(w, "reload subscription", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Subscription updated successfully", map[string]interface{}{
		"subscription": SubscriptionResponse{BotSubscription: *subscription, IsExpired: subscription.IsExpired(now)},
	})
}

func (h *Handler) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid subscription ID", "validation-error")
		return
	}

	subscription, err := h.loadScoped(r, id, false)
	if err != nil {
		utils.WriteNotFound(w, "Subscription")
		return
	}

	if err := h.db.Delete(subscription).Error; err != nil {
		utils.WriteError(w, "delete subscription", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Subscription deleted successfully", nil)
}
