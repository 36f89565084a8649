package credentials

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
	router.HandleFunc("/credentials", utils.AuthMiddleware(h.handleCreateCredential)).Methods("POST")
	router.HandleFunc("/credentials", utils.AuthMiddleware(h.handleGetCredentials)).Methods("GET")
	router.HandleFunc("/credentials/{id}", utils.AuthMiddleware(h.handleGetCredential)).Methods("GET")
	router.HandleFunc("/credentials/{id}", utils.AuthMiddleware(h.handleUpdateCredential)).Methods("PUT")
	router.HandleFunc("/credentials/{id}", utils.AuthMiddleware(h.handleDeleteCredential)).Methods("DELETE")
}

func (h *Handler) handleCreateCredential(w http.ResponseWriter, r *http.Request) {
	actorID, _ := utils.GetUserIDFromContext(r.Context())
	role, _ := utils.GetRoleFromContext(r.Context())

	var createRequest struct {
		UserID          *uint  `json:"userId"`
		BrokerID        *uint  `json:"brokerId"`
		Platform        string `json:"platform"`
		Server          string `json:"server"`
		AccountLogin    string `json:"accountLogin"`
		AccountPassword string `json:"accountPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&createRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}

	targetUserID := actorID
	if createRequest.UserID != nil && *createRequest.UserID != actorID {
		if role != models.RoleAdmin {
			utils.WriteFail(w, http.StatusForbidden, "Only admins can add credentials for other users", "admin-required")
			return
		}
		targetUserID = *createRequest.UserID
		var count int64
		if err := h.db.Model(&models.User{}).Where("id = ?", targetUserID).Count(&count).Error; err != nil || count == 0 {
			utils.WriteNotFound(w, "User")
			return
		}
	}

	if !models.ValidPlatform(createRequest.Platform) {
		utils.WriteFail(w, http.StatusBadRequest, "platform must be one of mt4, mt5, ctrader", "validation-error")
		return
	}
	if createRequest.Server == "" || createRequest.AccountLogin == "" || createRequest.AccountPassword == "" {
		utils.WriteFail(w, http.StatusBadRequest, "server, accountLogin and accountPassword are required", "validation-error")
		return
	}

	if createRequest.BrokerID != nil {
		var count int64
		if err := h.db.Model(&models.Broker{}).Where("id = ?", *createRequest.BrokerID).Count(&count).Error; err != nil || count == 0 {
			utils.WriteNotFound(w, "Broker")
			return
		}
	}

	credential := models.PlatformCredential{
		UserID:          targetUserID,
		BrokerID:        createRequest.BrokerID,
		Platform:        createRequest.Platform,
		Server:          createRequest.Server,
		AccountLogin:    createRequest.AccountLogin,
		AccountPassword: createRequest.AccountPassword,
	}

	if err := h.db.Create(&credential).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE constraint") {
			utils.WriteFail(w, http.StatusConflict, "This account is already registered", "credential-exists")
			return
		}
		utils.WriteError(w, "create credential", err)
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, "Credential created successfully", map[string]interface{}{"credential": credential})
}

func (h *Handler) handleGetCredentials(w http.ResponseWriter, r *http.Request) {
	actorID, _ := utils.GetUserIDFromContext(r.Context())
	role, _ := utils.GetRoleFromContext(r.Context())

	page, perPage, err := utils.ParsePagination(r)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, err.Error(), "invalid-pagination")
		return
	}

	scopeUserID := actorID
	if userIDParam := r.URL.Query().Get("userId"); userIDParam != "" {
		filterID, parseErr := strconv.ParseUint(userIDParam, 10, 64)
		if parseErr != nil {
			utils.WriteFail(w, http.StatusBadRequest, "Invalid userId filter", "validation-error")
			return
		}
		if !utils.CanAccess(role, actorID, uint(filterID)) {
			utils.WriteFail(w, http.StatusForbidden, "Cannot list another user's credentials", "permission-denied")
			return
		}
		scopeUserID = uint(filterID)
	} else if role == models.RoleAdmin {
		scopeUserID = 0
	}

	query := h.db.Model(&models.PlatformCredential{}).Preload("Broker")
	if scopeUserID != 0 {
		query = query.Where("user_id = ?", scopeUserID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.WriteError(w, "count credentials", err)
		return
	}

	var creds []models.PlatformCredential
	if err := query.Order("id").Offset(utils.Offset(page, perPage)).Limit(perPage).Find(&creds).Error; err != nil {
		utils.WriteError(w, "list credentials", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{
		"credentials":      creds,
		"page":             page,
		"perPage":          perPage,
		"totalPages":       utils.TotalPages(total, perPage),
		"totalCredentials": total,
	})
}

func (h *Handler) loadScoped(r *http.Request, id uint64) (*models.PlatformCredential, error) {
	actorID, _ := utils.GetUserIDFromContext(r.Context())
	role, _ := utils.GetRoleFromContext(r.Context())

	query := h.db.Preload("Broker")
	if role != models.RoleAdmin {
		query = query.Where("user_id = ?", actorID)
	}

	var credential models.PlatformCredential
	if err := query.First(&credential, id).Error; err != nil {
		return nil, err
	}
	return &credential, nil
}

func (h *Handler) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid credential ID", "validation-error")
		return
	}

	credential, err := h.loadScoped(r, id)
	if err != nil {
		utils.WriteNotFound(w, "Credential")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"credential": credential})
}

func (h *Handler) handleUpdateCredential(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid credential ID", "validation-error")
		return
	}

	var updateRequest struct {
		BrokerID        *uint   `json:"brokerId"`
		Platform        *string `json:"platform"`
		Server          *string `json:"server"`
		AccountLogin    *string `json:"accountLogin"`
		AccountPassword *string `json:"accountPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}

	if updateRequest.BrokerID == nil && updateRequest.Platform == nil && updateRequest.Server == nil &&
		updateRequest.AccountLogin == nil && updateRequest.AccountPassword == nil {
		utils.WriteFail(w, http.StatusBadRequest, "At least one field must be provided", "validation-error")
		return
	}
	if updateRequest.Platform != nil && !models.ValidPlatform(*updateRequest.Platform) {
		utils.WriteFail(w, http.StatusBadRequest, "platform must be one of mt4, mt5, ctrader", "validation-error")
		return
	}
	if updateRequest.Server != nil && *updateRequest.Server == "" {
		utils.WriteFail(w, http.StatusBadRequest, "server cannot be empty", "validation-error")
		return
	}
	if updateRequest.AccountLogin != nil && *updateRequest.AccountLogin == "" {
		utils.WriteFail(w, http.StatusBadRequest, "accountLogin cannot be empty", "validation-error")
		return
	}
	if updateRequest.AccountPassword != nil && *updateRequest.AccountPassword == "" {
		utils.WriteFail(w, http.StatusBadRequest, "accountPassword cannot be empty", "validation-error")
		return
	}

	credential, err := h.loadScoped(r, id)
	if err != nil {
		utils.WriteNotFound(w, "Credential")
		return
	}

	if updateRequest.BrokerID != nil {
		var count int64
		if err := h.db.Model(&models.Broker{}).Where("id = ?", *updateRequest.BrokerID).Count(&count).Error; err != nil || count == 0 {
			utils.WriteNotFound(w, "Broker")
			return
		}
		credential.BrokerID = updateRequest.BrokerID
	}
	if updateRequest.Platform != nil {
		credential.Platform = *updateRequest.Platform
	}
	if updateRequest.Server != nil {
		credential.Server = *updateRequest.Server
	}
	if updateRequest.AccountLogin != nil {
		credential.AccountLogin = *updateRequest.AccountLogin
	}
	if updateRequest.AccountPassword != nil {
		credential.AccountPassword = *updateRequest.AccountPassword
	}

	if err := h.db.Save(credential).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE constraint") {
			utils.WriteFail(w, http.StatusConflict, "This account is already registered", "credential-exists")
			return
		}
		utils.WriteError(w, "update credential", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Credential updated successfully", map[string]interface{}{"credential": credential})
}

func (h *Handler) handleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid credential ID", "validation-error")
		return
	}

	credential, err := h.loadScoped(r, id)
	if err != nil {
		utils.WriteNotFound(w, "Credential")
		return
	}

	if err := h.db.Delete(credential).Error; err != nil {
		utils.WriteError(w, "delete credential", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Credential deleted successfully", nil)
}
