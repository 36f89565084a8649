package dashboard

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/finfx/finfx-server/cmd/models"
	"github.com/finfx/finfx-server/cmd/utils"
	"github.com/finfx/finfx-server/service/subscription"
)

type DashboardHandler struct {
	db *gorm.DB
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

type DashboardStats struct {
	TotalUsers              int64   `json:"totalUsers"`
	TotalBots               int64   `json:"totalBots"`
	ActiveSubscriptions     int64   `json:"activeSubscriptions"`
	PausedSubscriptions     int64   `json:"pausedSubscriptions"`
	SignalsToday            int64   `json:"signalsToday"`
	OpenSignals             int64   `json:"openSignals"`
	PendingKYC              int64   `json:"pendingKyc"`
	MonthlyRecurringRevenue float64 `json:"monthlyRecurringRevenue"`
}

func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	dashboardRouter := router.PathPrefix("/dashboard").Subrouter()
	dashboardRouter.HandleFunc("/stats", utils.AuthMiddleware(utils.AdminMiddleware(h.GetDashboardStats))).Methods("GET")
}

func (h *DashboardHandler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	// Settle overdue subscriptions first so the counts reflect reality.
	if _, err := subscription.ExpireDue(h.db, 0, 0, now); err != nil {
		utils.WriteError(w, "expire due subscriptions", err)
		return
	}

	var stats DashboardStats

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&stats.TotalUsers, h.db.Model(&models.User{})},
		{&stats.TotalBots, h.db.Model(&models.Bot{})},
		{&stats.ActiveSubscriptions, h.db.Model(&models.BotSubscription{}).Where("status = ?", models.SubscriptionActive)},
		{&stats.PausedSubscriptions, h.db.Model(&models.BotSubscription{}).Where("status = ?", models.SubscriptionPaused)},
		{&stats.OpenSignals, h.db.Model(&models.Signal{}).Where("outcome = ?", models.OutcomeOpen)},
		{&stats.PendingKYC, h.db.Model(&models.KYC{}).Where("status = ?", models.KYCPending)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			utils.WriteError(w, "count dashboard stats", err)
			return
		}
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := h.db.Model(&models.Signal{}).
		Where("entry_time >= ?", startOfDay).
		Count(&stats.SignalsToday).Error; err != nil {
		utils.WriteError(w, "count signals today", err)
		return
	}

	if err := h.db.Model(&models.BotSubscription{}).
		Joins("JOIN bot_packages ON bot_packages.id = bot_subscriptions.bot_package_id").
		Where("bot_subscriptions.status = ?", models.SubscriptionActive).
		Select("coalesce(sum(bot_packages.price), 0)").
		Scan(&stats.MonthlyRecurringRevenue).Error; err != nil {
		utils.WriteError(w, "sum recurring revenue", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"stats": stats})
}
