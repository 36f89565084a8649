package broker

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
	router.HandleFunc("/brokers", utils.AuthMiddleware(utils.AdminMiddleware(h.handleCreateBroker))).Methods("POST")
	router.HandleFunc("/brokers", utils.AuthMiddleware(h.handleGetBrokers)).Methods("GET")
	router.HandleFunc("/brokers/{id}", utils.AuthMiddleware(h.handleGetBroker)).Methods("GET")
	router.HandleFunc("/brokers/{id}", utils.AuthMiddleware(utils.AdminMiddleware(h.handleUpdateBroker))).Methods("PUT")
	router.HandleFunc("/brokers/{id}", utils.AuthMiddleware(utils.AdminMiddleware(h.handleDeleteBroker))).Methods("DELETE")
}

func (h *Handler) handleCreateBroker(w http.ResponseWriter, r *http.Request) {
	var createRequest struct {
		Name      string   `json:"name"`
		Website   string   `json:"website"`
		Platforms []string `json:"platforms"`
		IsActive  *bool    `json:"isActive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&createRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}

	if strings.TrimSpace(createRequest.Name) == "" {
		utils.WriteFail(w, http.StatusBadRequest, "name is required", "validation-error")
		return
	}
	for _, platform := range createRequest.Platforms {
		if !models.ValidPlatform(platform) {
			utils.WriteFail(w, http.StatusBadRequest, "platforms must contain only mt4, mt5 or ctrader", "validation-error")
			return
		}
	}

	broker := models.Broker{
		Name:      strings.TrimSpace(createRequest.Name),
		Website:   createRequest.Website,
		Platforms: pq.StringArray(createRequest.Platforms),
		IsActive:  true,
	}
	if createRequest.IsActive != nil {
		broker.IsActive = *createRequest.IsActive
	}

	if err := h.db.Create(&broker).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE constraint") {
			utils.WriteFail(w, http.StatusConflict, "A broker with this name already exists", "broker-exists")
			return
		}
		utils.WriteError(w, "create broker", err)
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, "Broker created successfully", map[string]interface{}{"broker": broker})
}

func (h *Handler) handleGetBrokers(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := utils.ParsePagination(r)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, err.Error(), "invalid-pagination")
		return
	}

	query := h.db.Model(&models.Broker{})

	if isActive := r.URL.Query().Get("isActive"); isActive != "" {
		active, parseErr := strconv.ParseBool(isActive)
		if parseErr != nil {
			utils.WriteFail(w, http.StatusBadRequest, "Invalid value for isActive", "validation-error")
			return
		}
		query = query.Where("is_active = ?", active)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.WriteError(w, "count brokers", err)
		return
	}

	var brokers []models.Broker
	if err := query.Order("name").Offset(utils.Offset(page, perPage)).Limit(perPage).Find(&brokers).Error; err != nil {
		utils.WriteError(w, "list brokers", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{
		"brokers":      brokers,
		"page":         page,
		"perPage":      perPage,
		"totalPages":   utils.TotalPages(total, perPage),
		"totalBrokers": total,
	})
}

func (h *Handler) handleGetBroker(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	brokerID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid broker ID", "validation-error")
		return
	}

	var broker models.Broker
	if err := h.db.First(&broker, brokerID).Error; err != nil {
		utils.WriteNotFound(w, "Broker")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"broker": broker})
}

func (h *Handler) handleUpdateBroker(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	brokerID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid broker ID", "validation-error")
		return
	}

	var updateRequest struct {
		Name      *string   `json:"name"`
		Website   *string   `json:"website"`
		Platforms *[]string `json:"platforms"`
		IsActive  *bool     `json:"isActive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}

	if updateRequest.Name == nil && updateRequest.Website == nil && updateRequest.Platforms == nil && updateRequest.IsActive == nil {
		utils.WriteFail(w, http.StatusBadRequest, "At least one field must be provided", "validation-error")
		return
	}
	if updateRequest.Name != nil && strings.TrimSpace(*updateRequest.Name) == "" {
		utils.WriteFail(w, http.StatusBadRequest, "name cannot be empty", "validation-error")
		return
	}
	if updateRequest.Platforms != nil {
		for _, platform := range *updateRequest.Platforms {
			if !models.ValidPlatform(platform) {
				utils.WriteFail(w, http.StatusBadRequest, "platforms must contain only mt4, mt5 or ctrader", "validation-error")
				return
			}
		}
	}

	var broker models.Broker
	if err := h.db.First(&broker, brokerID).Error; err != nil {
		utils.WriteNotFound(w, "Broker")
		return
	}

	if updateRequest.Name != nil {
		broker.Name = strings.TrimSpace(*updateRequest.Name)
	}
	if updateRequest.Website != nil {
		broker.Website = *updateRequest.Website
	}
	if updateRequest.Platforms != nil {
		broker.Platforms = pq.StringArray(*updateRequest.Platforms)
	}
	if updateRequest.IsActive != nil {
		broker.IsActive = *updateRequest.IsActive
	}

	if err := h.db.Save(&broker).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE constraint") {
			utils.WriteFail(w, http.StatusConflict, "A broker with this name already exists", "broker-exists")
			return
		}
		utils.WriteError(w, "update broker", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Broker updated successfully", map[string]interface{}{"broker": broker})
}

func (h *Handler) handleDeleteBroker(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	brokerID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid broker ID", "validation-error")
		return
	}

	var broker models.Broker
	if err := h.db.First(&broker, brokerID).Error; err != nil {
		utils.WriteNotFound(w, "Broker")
		return
	}

	if err := h.db.Delete(&broker).Error; err != nil {
		utils.WriteError(w, "delete broker", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Broker deleted successfully", nil)
}
