package signals

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/finfx/finfx-server/cmd/models"
	"github.com/finfx/finfx-server/cmd/utils"
	"github.com/finfx/finfx-server/service/notifications"
	"github.com/finfx/finfx-server/service/subscription"
)

type SignalHandler struct {
	db     *gorm.DB
	pusher *notifications.Pusher
}

func NewSignalHandler(db *gorm.DB, pusher *notifications.Pusher) *SignalHandler {
	return &SignalHandler{db: db, pusher: pusher}
}

func (h *SignalHandler) RegisterRoutes(router *mux.Router) {
	signalRouter := router.PathPrefix("/signals").Subrouter()

	signalRouter.HandleFunc("", utils.AuthMiddleware(utils.AdminMiddleware(h.CreateSignal))).Methods("POST")
	signalRouter.HandleFunc("", utils.AuthMiddleware(h.GetSignals)).Methods("GET")
	signalRouter.HandleFunc("/bulk", utils.AuthMiddleware(utils.AdminMiddleware(h.CreateBulkSignals))).Methods("POST")
	signalRouter.HandleFunc("/performance", utils.AuthMiddleware(h.GetPerformance)).Methods("GET")
	signalRouter.HandleFunc("/{id:[0-9]+}", utils.AuthMiddleware(h.GetSignalByID)).Methods("GET")
	signalRouter.HandleFunc("/{id:[0-9]+}", utils.AuthMiddleware(utils.AdminMiddleware(h.UpdateSignal))).Methods("PUT")
	signalRouter.HandleFunc("/{id:[0-9]+}", utils.AuthMiddleware(utils.AdminMiddleware(h.DeleteSignal))).Methods("DELETE")
}

// validateSignal normalizes the wire form (direction is uppercased, names
// trimmed) and checks the fields every stored signal must carry.
func validateSignal(signal *models.Signal) error {
	signal.PairName = strings.TrimSpace(signal.PairName)
	signal.Direction = strings.ToUpper(strings.TrimSpace(signal.Direction))

	if signal.PairName == "" {
		return errors.New("pairName is required")
	}
	if !models.ValidDirection(signal.Direction) {
		return errors.New("direction must be LONG or SHORT")
	}
	if signal.EntryTime.IsZero() {
		return errors.New("entryTime is required")
	}
	if signal.EntryPrice <= 0 {
		return errors.New("entryPrice must be positive")
	}
	if signal.LotSize < models.MinLotSize {
		return errors.New("lotSize must be at least 0.1")
	}
	if signal.Outcome == "" {
		signal.Outcome = models.OutcomeOpen
	}
	if !models.ValidOutcome(signal.Outcome) {
		return errors.New("outcome must be one of open, win, loss, breakeven")
	}
	return nil
}

func (h *SignalHandler) CreateSignal(w http.ResponseWriter, r *http.Request) {
	actorID, _ := utils.GetUserIDFromContext(r.Context())

	var signal models.Signal
	if err := json.NewDecoder(r.Body).Decode(&signal); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}

	if err := validateSignal(&signal); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, err.Error(), "validation-error")
		return
	}

	if signal.UserID == 0 {
		signal.UserID = actorID
	} else if signal.UserID != actorID {
		var count int64
		if err := h.db.Model(&models.User{}).Where("id = ?", signal.UserID).Count(&count).Error; err != nil || count == 0 {
			utils.WriteNotFound(w, "User")
			return
		}
	}

	if signal.BotID != nil {
		var count int64
		if err := h.db.Model(&models.Bot{}).Where("id = ?", *signal.BotID).Count(&count).Error; err != nil || count == 0 {
			utils.WriteFail(w, http.StatusNotFound, "Bot not found", "bot-not-found")
			return
		}
	}

	if err := h.db.Create(&signal).Error; err != nil {
		utils.WriteError(w, "create signal", err)
		return
	}

	if signal.BotID != nil {
		go h.pusher.NotifyBotSubscribers(*signal.BotID, signal.PairName, signal.Direction)
	}

	utils.WriteSuccess(w, http.StatusCreated, "Signal created successfully", map[string]interface{}{"signal": signal})
}

// bulkDefaultLotSize is stamped on bulk items that arrive without a lot
// size. Publisher clients send only the trade fields and leave ownership
// and sizing to the server.
const bulkDefaultLotSize = 1.0

// applyBulkDefaults fills the server-managed fields of a bulk item before
// validation: the path-level bot, the publishing user and the lot size.
func applyBulkDefaults(signal *models.Signal, actorID, botID uint) {
	signal.BotID = &botID
	if signal.UserID == 0 {
		signal.UserID = actorID
	}
	if signal.LotSize == 0 {
		signal.LotSize = bulkDefaultLotSize
	}
}

// CreateBulkSignals records a batch of signals for one bot in a single
// transaction and fans a push notification out to its subscribers.
func (h *SignalHandler) CreateBulkSignals(w http.ResponseWriter, r *http.Request) {
	actorID, _ := utils.GetUserIDFromContext(r.Context())

	var bulkRequest struct {
		BotID   uint            `json:"botId"`
		Signals []models.Signal `json:"signals"`
	}
	if err := json.NewDecoder(r.Body).Decode(&bulkRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}

	if bulkRequest.BotID == 0 {
		utils.WriteFail(w, http.StatusBadRequest, "botId is required", "validation-error")
		return
	}
	if len(bulkRequest.Signals) == 0 {
		utils.WriteFail(w, http.StatusBadRequest, "signals must be a non-empty list", "validation-error")
		return
	}

	var count int64
	if err := h.db.Model(&models.Bot{}).Where("id = ?", bulkRequest.BotID).Count(&count).Error; err != nil || count == 0 {
		utils.WriteFail(w, http.StatusNotFound, "Bot not found", "bot-not-found")
		return
	}

	botID := bulkRequest.BotID
	for i := range bulkRequest.Signals {
		applyBulkDefaults(&bulkRequest.Signals[i], actorID, botID)
		if err := validateSignal(&bulkRequest.Signals[i]); err != nil {
			utils.WriteFail(w, http.StatusBadRequest, fmt.Sprintf("signals[%d]: %s", i, err.Error()), "validation-error")
			return
		}
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		for i := range bulkRequest.Signals {
			if err := tx.Create(&bulkRequest.Signals[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		utils.WriteError(w, "create bulk signals", err)
		return
	}

	first := bulkRequest.Signals[0]
	go h.pusher.NotifyBotSubscribers(botID, first.PairName, first.Direction)

	utils.WriteSuccess(w, http.StatusCreated, "Signals created successfully", map[string]interface{}{
		"signals":      bulkRequest.Signals,
		"createdCount": len(bulkRequest.Signals),
	})
}

// subscribedBotScope narrows a signal query to bots the actor holds an
// active subscription to. Admins see everything.
func (h *SignalHandler) subscribedBotScope(r *http.Request, query *gorm.DB) (*gorm.DB, error) {
	if utils.IsAdmin(r.Context()) {
		return query, nil
	}

	actorID, _ := utils.GetUserIDFromContext(r.Context())
	if _, err := subscription.ExpireDue(h.db, actorID, 0, time.Now()); err != nil {
		return nil, err
	}

	subscribedBots := h.db.Model(&models.BotSubscription{}).
		Select("bot_id").
		Where("user_id = ? AND status = ?", actorID, models.SubscriptionActive)
	return query.Where("bot_id IN (?)", subscribedBots), nil
}

func (h *SignalHandler) GetSignals(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := utils.ParsePagination(r)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, err.Error(), "invalid-pagination")
		return
	}

	query := h.db.Model(&models.Signal{})

	if pairName := r.URL.Query().Get("pairName"); pairName != "" {
		query = query.Where("pair_name = ?", pairName)
	}
	if direction := r.URL.Query().Get("direction"); direction != "" {
		direction = strings.ToUpper(direction)
		if !models.ValidDirection(direction) {
			utils.WriteFail(w, http.StatusBadRequest, "Invalid direction filter", "validation-error")
			return
		}
		query = query.Where("direction = ?", direction)
	}
	if outcome := r.URL.Query().Get("outcome"); outcome != "" {
		if !models.ValidOutcome(outcome) {
			utils.WriteFail(w, http.StatusBadRequest, "Invalid outcome filter", "validation-error")
			return
		}
		query = query.Where("outcome = ?", outcome)
	}
	if botIDParam := r.URL.Query().Get("botId"); botIDParam != "" {
		botID, parseErr := strconv.ParseUint(botIDParam, 10, 64)
		if parseErr != nil {
			utils.WriteFail(w, http.StatusBadRequest, "Invalid botId filter", "validation-error")
			return
		}
		query = query.Where("bot_id = ?", botID)
	}

	query, err = h.subscribedBotScope(r, query)
	if err != nil {
		utils.WriteError(w, "scope signals", err)
		return
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.WriteError(w, "count signals", err)
		return
	}

	signals := make([]models.Signal, 0)
	if err := query.Order("entry_time DESC").Offset(utils.Offset(page, perPage)).Limit(perPage).Find(&signals).Error; err != nil {
		utils.WriteError(w, "list signals", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{
		"signals":      signals,
		"page":         page,
		"perPage":      perPage,
		"totalPages":   utils.TotalPages(total, perPage),
		"totalSignals": total,
	})
}

func (h *SignalHandler) GetSignalByID(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid signal ID", "validation-error")
		return
	}

	var signal models.Signal
	if err := h.db.First(&signal, id).Error; err != nil {
		utils.WriteNotFound(w, "Signal")
		return
	}

	if !h.canReadSignal(r, &signal) {
		utils.WriteNotFound(w, "Signal")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"signal": signal})
}

// canReadSignal applies the read rule for a single record: admins and the
// signal's own user always, everyone else only through an active
// subscription to the signal's bot.
func (h *SignalHandler) canReadSignal(r *http.Request, signal *models.Signal) bool {
	actorID, _ := utils.GetUserIDFromContext(r.Context())
	role, _ := utils.GetRoleFromContext(r.Context())
	if utils.CanAccess(role, actorID, signal.UserID) {
		return true
	}
	if signal.BotID == nil {
		return false
	}

	if _, err := subscription.ExpireDue(h.db, actorID, *signal.BotID, time.Now()); err != nil {
		return false
	}
	var count int64
	err := h.db.Model(&models.BotSubscription{}).
		Where("user_id = ? AND bot_id = ? AND status = ?", actorID, *signal.BotID, models.SubscriptionActive).
		Count(&count).Error
	return err == nil && count > 0
}

func (h *SignalHandler) UpdateSignal(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid signal ID", "validation-error")
		return
	}

	var updateRequest struct {
		PairName      *string    `json:"pairName"`
		Direction     *string    `json:"direction"`
		EntryPrice    *float64   `json:"entryPrice"`
		LotSize       *float64   `json:"lotSize"`
		StopLossPrice *float64   `json:"stopLossPrice"`
		TargetPrice   *float64   `json:"targetPrice"`
		TakeProfits   *[]float64 `json:"takeProfits"`
		TradeID       *string    `json:"tradeId"`
		ExitPrice     *float64   `json:"exitPrice"`
		ExitTime      *time.Time `json:"exitTime"`
		Outcome       *string    `json:"outcome"`
		Pips          *float64   `json:"pips"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}

	var signal models.Signal
	if err := h.db.First(&signal, id).Error; err != nil {
		utils.WriteNotFound(w, "Signal")
		return
	}

	if updateRequest.PairName != nil {
		signal.PairName = strings.TrimSpace(*updateRequest.PairName)
	}
	if updateRequest.Direction != nil {
		signal.Direction = strings.ToUpper(strings.TrimSpace(*updateRequest.Direction))
	}
	if updateRequest.EntryPrice != nil {
		signal.EntryPrice = *updateRequest.EntryPrice
	}
	if updateRequest.LotSize != nil {
		signal.LotSize = *updateRequest.LotSize
	}
	if updateRequest.StopLossPrice != nil {
		signal.StopLossPrice = updateRequest.StopLossPrice
	}
	if updateRequest.TargetPrice != nil {
		signal.TargetPrice = updateRequest.TargetPrice
	}
	if updateRequest.TakeProfits != nil {
		signal.TakeProfits = *updateRequest.TakeProfits
	}
	if updateRequest.TradeID != nil {
		signal.TradeID = *updateRequest.TradeID
	}
	if updateRequest.ExitPrice != nil {
		signal.ExitPrice = updateRequest.ExitPrice
	}
	if updateRequest.ExitTime != nil {
		signal.ExitTime = updateRequest.ExitTime
	}
	if updateRequest.Outcome != nil {
		signal.Outcome = *updateRequest.Outcome
	}
	if updateRequest.Pips != nil {
		signal.Pips = updateRequest.Pips
	}

	if err := validateSignal(&signal); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, err.Error(), "validation-error")
		return
	}

	// A closed outcome needs the exit recorded with it.
	if signal.Outcome != models.OutcomeOpen && signal.ExitPrice == nil {
		utils.WriteFail(w, http.StatusBadRequest, "closing a signal requires exitPrice", "validation-error")
		return
	}

	if err := h.db.Save(&signal).Error; err != nil {
		utils.WriteError(w, "update signal", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Signal updated successfully", map[string]interface{}{"signal": signal})
}

func (h *SignalHandler) DeleteSignal(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid signal ID", "validation-error")
		return
	}

	result := h.db.Delete(&models.Signal{}, id)
	if result.Error != nil {
		utils.WriteError(w, "delete signal", result.Error)
		return
	}
	if result.RowsAffected == 0 {
		utils.WriteNotFound(w, "Signal")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Signal deleted successfully", nil)
}

type performanceRow struct {
	GroupKey   string  `json:"groupKey"`
	Total      int64   `json:"total"`
	Wins       int64   `json:"wins"`
	Losses     int64   `json:"losses"`
	Breakevens int64   `json:"breakevens"`
	TotalPips  float64 `json:"totalPips"`
	WinRate    float64 `json:"winRate"`
}

// GetPerformance aggregates closed signals per bot (or per pair with
// groupBy=pair) into win/loss counts and pip totals.
func (h *SignalHandler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	groupBy := r.URL.Query().Get("groupBy")
	if groupBy == "" {
		groupBy = "bot"
	}
	var groupColumn string
	switch groupBy {
	case "bot":
		groupColumn = "bot_id"
	case "pair":
		groupColumn = "pair_name"
	default:
		utils.WriteFail(w, http.StatusBadRequest, "groupBy must be bot or pair", "validation-error")
		return
	}

	query := h.db.Model(&models.Signal{}).
		Select(groupColumn+" as group_key, "+
			"count(*) as total, "+
			"sum(case when outcome = ? then 1 else 0 end) as wins, "+
			"sum(case when outcome = ? then 1 else 0 end) as losses, "+
			"sum(case when outcome = ? then 1 else 0 end) as breakevens, "+
			"coalesce(sum(pips), 0) as total_pips",
			models.OutcomeWin, models.OutcomeLoss, models.OutcomeBreakeven).
		Where("outcome <> ?", models.OutcomeOpen).
		Group(groupColumn)

	if groupColumn == "bot_id" {
		query = query.Where("bot_id IS NOT NULL")
	}

	if botIDParam := r.URL.Query().Get("botId"); botIDParam != "" {
		botID, parseErr := strconv.ParseUint(botIDParam, 10, 64)
		if parseErr != nil {
			utils.WriteFail(w, http.StatusBadRequest, "Invalid botId filter", "validation-error")
			return
		}
		query = query.Where("bot_id = ?", botID)
	}
	if pairName := r.URL.Query().Get("pairName"); pairName != "" {
		query = query.Where("pair_name = ?", pairName)
	}

	layout := "2006-01-02"
	if fromParam := r.URL.Query().Get("from"); fromParam != "" {
		from, parseErr := time.Parse(layout, fromParam)
		if parseErr != nil {
			utils.WriteFail(w, http.StatusBadRequest, "Invalid from date. Use YYYY-MM-DD", "validation-error")
			return
		}
		query = query.Where("entry_time >= ?", from)
	}
	if toParam := r.URL.Query().Get("to"); toParam != "" {
		to, parseErr := time.Parse(layout, toParam)
		if parseErr != nil {
			utils.WriteFail(w, http.StatusBadRequest, "Invalid to date. Use YYYY-MM-DD", "validation-error")
			return
		}
		query = query.Where("entry_time <= ?", to)
	}

	query, err := h.subscribedBotScope(r, query)
	if err != nil {
		utils.WriteError(w, "scope performance", err)
		return
	}

	rows := make([]performanceRow, 0)
	if err := query.Find(&rows).Error; err != nil {
		utils.WriteError(w, "aggregate performance", err)
		return
	}

	for i := range rows {
		rows[i].WinRate = winRate(rows[i].Wins, rows[i].Total)
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{
		"groupBy":     groupBy,
		"performance": rows,
	})
}

// winRate is the share of closed signals that won, as a percentage
// rounded to two decimals.
func winRate(wins, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(int64(float64(wins)/float64(total)*10000+0.5)) / 100
}
