package bot

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/finfx/finfx-server/cmd/models"
	"github.com/finfx/finfx-server/cmd/utils"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/bots", utils.AuthMiddleware(utils.AdminMiddleware(h.handleCreateBot))).Methods("POST")
	router.HandleFunc("/bots", utils.AuthMiddleware(h.handleGetBots)).Methods("GET")
	router.HandleFunc("/bots/{id}", utils.AuthMiddleware(h.handleGetBot)).Methods("GET")
	router.HandleFunc("/bots/{id}", utils.AuthMiddleware(utils.AdminMiddleware(h.handleUpdateBot))).Methods("PUT")
	router.HandleFunc("/bots/{id}", utils.AuthMiddleware(utils.AdminMiddleware(h.handleDeleteBot))).Methods("DELETE")
}

func (h *Handler) handleCreateBot(w http.ResponseWriter, r *http.Request) {
	var createRequest struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Strategy    string   `json:"strategy"`
		Pairs       []string `json:"pairs"`
		RiskLevel   string   `json:"riskLevel"`
		IsActive    *bool    `json:"isActive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&createRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}

	if createRequest.Name == "" {
		utils.WriteFail(w, http.StatusBadRequest, "name is required", "validation-error")
		return
	}
	if createRequest.RiskLevel == "" {
		createRequest.RiskLevel = models.RiskMedium
	}
	if !models.ValidRiskLevel(createRequest.RiskLevel) {
		utils.WriteFail(w, http.StatusBadRequest, "riskLevel must be one of low, medium, high", "validation-error")
		return
	}

	bot := models.Bot{
		Name:        createRequest.Name,
		Description: createRequest.Description,
		Strategy:    createRequest.Strategy,
		Pairs:       pq.StringArray(createRequest.Pairs),
		RiskLevel:   createRequest.RiskLevel,
		IsActive:    true,
	}
	if createRequest.IsActive != nil {
		bot.IsActive = *createRequest.IsActive
	}

	if err := h.db.Create(&bot).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE constraint") {
			utils.WriteFail(w, http.StatusConflict, "A bot with this name already exists", "bot-exists")
			return
		}
		utils.WriteError(w, "create bot", err)
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, "Bot created successfully", map[string]interface{}{"bot": bot})
}

func (h *Handler) handleGetBots(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := utils.ParsePagination(r)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, err.Error(), "invalid-pagination")
		return
	}

	query := h.db.Model(&models.Bot{})

	if isActive := r.URL.Query().Get("isActive"); isActive != "" {
		active, parseErr := strconv.ParseBool(isActive)
		if parseErr != nil {
			utils.WriteFail(w, http.StatusBadRequest, "Invalid value for isActive", "validation-error")
			return
		}
		query = query.Where("is_active = ?", active)
	}
	if riskLevel := r.URL.Query().Get("riskLevel"); riskLevel != "" {
		if !models.ValidRiskLevel(riskLevel) {
			utils.WriteFail(w, http.StatusBadRequest, "Invalid riskLevel filter", "validation-error")
			return
		}
		query = query.Where("risk_level = ?", riskLevel)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.WriteError(w, "count bots", err)
		return
	}

	var bots []models.Bot
	if err := query.Order("id").Offset(utils.Offset(page, perPage)).Limit(perPage).Find(&bots).Error; err != nil {
		utils.WriteError(w, "list bots", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{
		"bots":       bots,
		"page":       page,
		"perPage":    perPage,
		"totalPages": utils.TotalPages(total, perPage),
		"totalBots":  total,
	})
}

func (h *Handler) handleGetBot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	botID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid bot ID", "validation-error")
		return
	}

	var bot models.Bot
	if err := h.db.First(&bot, botID).Error; err != nil {
		utils.WriteNotFound(w, "Bot")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"bot": bot})
}

func (h *Handler) handleUpdateBot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	botID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid bot ID", "validation-error")
		return
	}

	var updateRequest struct {
		Name        *string   `json:"name"`
		Description *string   `json:"description"`
		Strategy    *string   `json:"strategy"`
		Pairs       *[]string `json:"pairs"`
		RiskLevel   *string   `json:"riskLevel"`
		IsActive    *bool     `json:"isActive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}

	if updateRequest.Name == nil && updateRequest.Description == nil && updateRequest.Strategy == nil &&
		updateRequest.Pairs == nil && updateRequest.RiskLevel == nil && updateRequest.IsActive == nil {
		utils.WriteFail(w, http.StatusBadRequest, "At least one field must be provided", "validation-error")
		return
	}
	if updateRequest.Name != nil && *updateRequest.Name == "" {
		utils.WriteFail(w, http.StatusBadRequest, "name cannot be empty", "validation-error")
		return
	}
	if updateRequest.RiskLevel != nil && !models.ValidRiskLevel(*updateRequest.RiskLevel) {
		utils.WriteFail(w, http.StatusBadRequest, "riskLevel must be one of low, medium, high", "validation-error")
		return
	}

	var bot models.Bot
	if err := h.db.First(&bot, botID).Error; err != nil {
		utils.WriteNotFound(w, "Bot")
		return
	}

	if updateRequest.Name != nil {
		bot.Name = *updateRequest.Name
	}
	if updateRequest.Description != nil {
		bot.Description = *updateRequest.Description
	}
	if updateRequest.Strategy != nil {
		bot.Strategy = *updateRequest.Strategy
	}
	if updateRequest.Pairs != nil {
		bot.Pairs = pq.StringArray(*updateRequest.Pairs)
	}
	if updateRequest.RiskLevel != nil {
		bot.RiskLevel = *updateRequest.RiskLevel
	}
	if updateRequest.IsActive != nil {
		bot.IsActive = *updateRequest.IsActive
	}

	if err := h.db.Save(&bot).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE constraint") {
			utils.WriteFail(w, http.StatusConflict, "A bot with this name already exists", "bot-exists")
			return
		}
		utils.WriteError(w, "update bot", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Bot updated successfully", map[string]interface{}{"bot": bot})
}

// handleDeleteBot removes the bot row only. Subscriptions and signals that
// reference it stay as history; creation paths validate bot existence.
func (h *Handler) handleDeleteBot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	botID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid bot ID", "validation-error")
		return
	}

	var bot models.Bot
	if err := h.db.First(&bot, botID).Error; err != nil {
		utils.WriteNotFound(w, "Bot")
		return
	}

	if err := h.db.Delete(&bot).Error; err != nil {
		utils.WriteError(w, "delete bot", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Bot deleted successfully", nil)
}
