package packages

import (
	"encoding/json"
	"fmt"
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
	router.HandleFunc("/packages", utils.AuthMiddleware(utils.AdminMiddleware(h.handleCreatePackage))).Methods("POST")
	router.HandleFunc("/packages", utils.AuthMiddleware(h.handleGetPackages)).Methods("GET")
	router.HandleFunc("/packages/{id}", utils.AuthMiddleware(h.handleGetPackage)).Methods("GET")
	router.HandleFunc("/packages/{id}", utils.AuthMiddleware(utils.AdminMiddleware(h.handleUpdatePackage))).Methods("PUT")
	router.HandleFunc("/packages/{id}", utils.AuthMiddleware(utils.AdminMiddleware(h.handleDeletePackage))).Methods("DELETE")
}

func (h *Handler) handleCreatePackage(w http.ResponseWriter, r *http.Request) {
	var createRequest struct {
		Name        string `json:"name"`
		Duration    int    `json:"duration"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&createRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}

	if createRequest.Name == "" {
		utils.WriteFail(w, http.StatusBadRequest, "name is required", "validation-error")
		return
	}
	if !models.ValidPackageDuration(createRequest.Duration) {
		utils.WriteFail(w, http.StatusBadRequest,
			fmt.Sprintf("duration must be between %d and %d days", models.MinPackageDuration, models.MaxPackageDuration),
			"invalid-duration")
		return
	}

	pkg := models.Package{
		Name:        createRequest.Name,
		Duration:    createRequest.Duration,
		Description: createRequest.Description,
	}

	if err := h.db.Create(&pkg).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE constraint") {
			utils.WriteFail(w, http.StatusConflict, "A package with this name already exists", "package-exists")
			return
		}
		utils.WriteError(w, "create package", err)
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, "Package created successfully", map[string]interface{}{"package": pkg})
}

func (h *Handler) handleGetPackages(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := utils.ParsePagination(r)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, err.Error(), "invalid-pagination")
		return
	}

	query := h.db.Model(&models.Package{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.WriteError(w, "count packages", err)
		return
	}

	var pkgs []models.Package
	if err := query.Order("duration").Offset(utils.Offset(page, perPage)).Limit(perPage).Find(&pkgs).Error; err != nil {
		utils.WriteError(w, "list packages", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{
		"packages":      pkgs,
		"page":          page,
		"perPage":       perPage,
		"totalPages":    utils.TotalPages(total, perPage),
		"totalPackages": total,
	})
}

func (h *Handler) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	packageID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid package ID", "validation-error")
		return
	}

	var pkg models.Package
	if err := h.db.First(&pkg, packageID).Error; err != nil {
		utils.WriteNotFound(w, "Package")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"package": pkg})
}

func (h *Handler) handleUpdatePackage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	packageID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid package ID", "validation-error")
		return
	}

	var updateRequest struct {
		Name        *string `json:"name"`
		Duration    *int    `json:"duration"`
		Description *string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}

	if updateRequest.Name == nil && updateRequest.Duration == nil && updateRequest.Description == nil {
		utils.WriteFail(w, http.StatusBadRequest, "At least one field must be provided", "validation-error")
		return
	}
	if updateRequest.Name != nil && *updateRequest.Name == "" {
		utils.WriteFail(w, http.StatusBadRequest, "name cannot be empty", "validation-error")
		return
	}
	if updateRequest.Duration != nil && !models.ValidPackageDuration(*updateRequest.Duration) {
		utils.WriteFail(w, http.StatusBadRequest,
			fmt.Sprintf("duration must be between %d and %d days", models.MinPackageDuration, models.MaxPackageDuration),
			"invalid-duration")
		return
	}

	var pkg models.Package
	if err := h.db.First(&pkg, packageID).Error; err != nil {
		utils.WriteNotFound(w, "Package")
		return
	}

	if updateRequest.Name != nil {
		pkg.Name = *updateRequest.Name
	}
	if updateRequest.Duration != nil {
		pkg.Duration = *updateRequest.Duration
	}
	if updateRequest.Description != nil {
		pkg.Description = *updateRequest.Description
	}

	if err := h.db.Save(&pkg).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE constraint") {
			utils.WriteFail(w, http.StatusConflict, "A package with this name already exists", "package-exists")
			return
		}
		utils.WriteError(w, "update package", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Package updated successfully", map[string]interface{}{"package": pkg})
}

func (h *Handler) handleDeletePackage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	packageID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid package ID", "validation-error")
		return
	}

	var pkg models.Package
	if err := h.db.First(&pkg, packageID).Error; err != nil {
		utils.WriteNotFound(w, "Package")
		return
	}

	if err := h.db.Delete(&pkg).Error; err != nil {
		utils.WriteError(w, "delete package", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Package deleted successfully", nil)
}
