package botpackage

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
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
	router.HandleFunc("/bot-packages", utils.AuthMiddleware(utils.AdminMiddleware(h.handleCreateBotPackage))).Methods("POST")
	router.HandleFunc("/bot-packages", utils.AuthMiddleware(h.handleGetBotPackages)).Methods("GET")
	router.HandleFunc("/bot-packages/{id}", utils.AuthMiddleware(h.handleGetBotPackage)).Methods("GET")
	router.HandleFunc("/bot-packages/{id}", utils.AuthMiddleware(utils.AdminMiddleware(h.handleUpdateBotPackage))).Methods("PUT")
	router.HandleFunc("/bot-packages/{id}", utils.AuthMiddleware(utils.AdminMiddleware(h.handleDeleteBotPackage))).Methods("DELETE")
}

func (h *Handler) handleCreateBotPackage(w http.ResponseWriter, r *http.Request) {
	var createRequest struct {
		BotID     uint     `json:"botId"`
		PackageID uint     `json:"packageId"`
		Price     *float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&createRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}

	if createRequest.BotID == 0 || createRequest.PackageID == 0 {
		utils.WriteFail(w, http.StatusBadRequest, "botId and packageId are required", "validation-error")
		return
	}
	if createRequest.Price == nil || *createRequest.Price < 0 {
		utils.WriteFail(w, http.StatusBadRequest, "price must be zero or positive", "invalid-price")
		return
	}

	var bot models.Bot
	if err := h.db.First(&bot, createRequest.BotID).Error; err != nil {
		utils.WriteNotFound(w, "Bot")
		return
	}
	var pkg models.Package
	if err := h.db.First(&pkg, createRequest.PackageID).Error; err != nil {
		utils.WriteNotFound(w, "Package")
		return
	}

	botPackage := models.BotPackage{
		BotID:     createRequest.BotID,
		PackageID: createRequest.PackageID,
		Price:     *createRequest.Price,
	}

	if err := h.db.Create(&botPackage).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE constraint") {
			utils.WriteFail(w, http.StatusConflict, "This bot already has a price for this package", "bot-package-exists")
			return
		}
		utils.WriteError(w, "create bot package", err)
		return
	}

	botPackage.Bot = &bot
	botPackage.Package = &pkg

	utils.WriteSuccess(w, http.StatusCreated, "Bot package created successfully", map[string]interface{}{"botPackage": botPackage})
}

func (h *Handler) handleGetBotPackages(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := utils.ParsePagination(r)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, err.Error(), "invalid-pagination")
		return
	}

	query := h.db.Model(&models.BotPackage{}).Preload("Bot").Preload("Package")

	if botID := r.URL.Query().Get("botId"); botID != "" {
		id, parseErr := strconv.ParseUint(botID, 10, 64)
		if parseErr != nil {
			utils.WriteFail(w, http.StatusBadRequest, "Invalid botId filter", "validation-error")
			return
		}
		query = query.Where("bot_id = ?", id)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.WriteError(w, "count bot packages", err)
		return
	}

	var botPackages []models.BotPackage
	if err := query.Order("id").Offset(utils.Offset(page, perPage)).Limit(perPage).Find(&botPackages).Error; err != nil {
		utils.WriteError(w, "list bot packages", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{
		"botPackages":      botPackages,
		"page":             page,
		"perPage":          perPage,
		"totalPages":       utils.TotalPages(total, perPage),
		"totalBotPackages": total,
	})
}

func (h *Handler) handleGetBotPackage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	botPackageID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid bot package ID", "validation-error")
		return
	}

	var botPackage models.BotPackage
	if err := h.db.Preload("Bot").Preload("Package").First(&botPackage, botPackageID).Error; err != nil {
		utils.WriteNotFound(w, "Bot package")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"botPackage": botPackage})
}

func (h *Handler) handleUpdateBotPackage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	botPackageID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid bot package ID", "validation-error")
		return
	}

	var updateRequest struct {
		Price *float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}

	if updateRequest.Price == nil {
		utils.WriteFail(w, http.StatusBadRequest, "At least one field must be provided", "validation-error")
		return
	}
	if *updateRequest.Price < 0 {
		utils.WriteFail(w, http.StatusBadRequest, "price must be zero or positive", "invalid-price")
		return
	}

	var botPackage models.BotPackage
	if err := h.db.First(&botPackage, botPackageID).Error; err != nil {
		utils.WriteNotFound(w, "Bot package")
		return
	}

	botPackage.Price = *updateRequest.Price

	if err := h.db.Save(&botPackage).Error; err != nil {
		utils.WriteError(w, "update bot package", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Bot package updated successfully", map[string]interface{}{"botPackage": botPackage})
}

func (h *Handler) handleDeleteBotPackage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	botPackageID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid bot package ID", "validation-error")
		return
	}

	var botPackage models.BotPackage
	if err := h.db.First(&botPackage, botPackageID).Error; err != nil {
		utils.WriteNotFound(w, "Bot package")
		return
	}

	if err := h.db.Delete(&botPackage).Error; err != nil {
		utils.WriteError(w, "delete bot package", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Bot package deleted successfully", nil)
}
