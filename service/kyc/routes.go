package kyc

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

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
	router.HandleFunc("/kyc", utils.AuthMiddleware(h.handleSubmitKYC)).Methods("POST")
	router.HandleFunc("/kyc", utils.AuthMiddleware(utils.AdminMiddleware(h.handleGetSubmissions))).Methods("GET")
	router.HandleFunc("/kyc/me", utils.AuthMiddleware(h.handleGetOwnSubmission)).Methods("GET")
	router.HandleFunc("/kyc/documents/{filename}", utils.AuthMiddleware(h.handleGetDocument)).Methods("GET")
	router.HandleFunc("/kyc/{id:[0-9]+}", utils.AuthMiddleware(h.handleGetSubmission)).Methods("GET")
	router.HandleFunc("/kyc/{id:[0-9]+}/review", utils.AuthMiddleware(utils.AdminMiddleware(h.handleReviewSubmission))).Methods("PUT")
}

func validDocumentType(documentType string) bool {
	switch documentType {
	case "passport", "national_id", "drivers_license":
		return true
	}
	return false
}

// discardDocuments removes files saved earlier in a submission that did
// not complete. No record points at them.
func discardDocuments(filenames ...string) {
	for _, filename := range filenames {
		if filename == "" {
			continue
		}
		if err := utils.DeleteDocument(filename); err != nil {
			log.Printf("discarding kyc document %s: %v", filename, err)
		}
	}
}

func (h *Handler) handleSubmitKYC(w http.ResponseWriter, r *http.Request) {
	actorID, _ := utils.GetUserIDFromContext(r.Context())

	if err := r.ParseMultipartForm(3 * utils.MaxDocumentSize); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid multipart form", "validation-error")
		return
	}

	fullLegalName := r.FormValue("fullLegalName")
	dateOfBirth := r.FormValue("dateOfBirth")
	country := r.FormValue("country")
	address := r.FormValue("address")
	documentType := r.FormValue("documentType")

	if fullLegalName == "" || dateOfBirth == "" || country == "" || documentType == "" {
		utils.WriteFail(w, http.StatusBadRequest, "fullLegalName, dateOfBirth, country and documentType are required", "validation-error")
		return
	}
	if _, err := time.Parse("2006-01-02", dateOfBirth); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "dateOfBirth must be in YYYY-MM-DD format", "validation-error")
		return
	}
	if !validDocumentType(documentType) {
		utils.WriteFail(w, http.StatusBadRequest, "documentType must be one of passport, national_id, drivers_license", "validation-error")
		return
	}

	var existing models.KYC
	err := h.db.Where("user_id = ?", actorID).First(&existing).Error
	hasExisting := err == nil
	if err != nil && err != gorm.ErrRecordNotFound {
		utils.WriteError(w, "load kyc record", err)
		return
	}
	if hasExisting && existing.Status == models.KYCApproved {
		utils.WriteFail(w, http.StatusConflict, "KYC is already approved", "kyc-approved")
		return
	}

	frontFile, frontHeader, err := r.FormFile("documentFront")
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "documentFront file is required", "validation-error")
		return
	}
	defer frontFile.Close()

	frontPath, err := utils.SaveDocument(frontFile, frontHeader)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, err.Error(), "validation-error")
		return
	}

	var backPath string
	if backFile, backHeader, err := r.FormFile("documentBack"); err == nil {
		defer backFile.Close()
		backPath, err = utils.SaveDocument(backFile, backHeader)
		if err != nil {
			discardDocuments(frontPath)
			utils.WriteFail(w, http.StatusBadRequest, err.Error(), "validation-error")
			return
		}
	}

	var selfiePath string
	if selfieFile, selfieHeader, err := r.FormFile("selfie"); err == nil {
		defer selfieFile.Close()
		selfiePath, err = utils.SaveDocument(selfieFile, selfieHeader)
		if err != nil {
			discardDocuments(frontPath, backPath)
			utils.WriteFail(w, http.StatusBadRequest, err.Error(), "validation-error")
			return
		}
	}

	record := models.KYC{
		UserID:        actorID,
		FullLegalName: fullLegalName,
		DateOfBirth:   dateOfBirth,
		Country:       country,
		Address:       address,
		DocumentType:  documentType,
		DocumentFront: frontPath,
		DocumentBack:  backPath,
		SelfiePath:    selfiePath,
		Status:        models.KYCPending,
	}

	if hasExisting {
		// Resubmission replaces the documents and clears any earlier review.
		updates := map[string]interface{}{
			"full_legal_name":  record.FullLegalName,
			"date_of_birth":    record.DateOfBirth,
			"country":          record.Country,
			"address":          record.Address,
			"document_type":    record.DocumentType,
			"document_front":   record.DocumentFront,
			"document_back":    record.DocumentBack,
			"selfie_path":      record.SelfiePath,
			"status":           models.KYCPending,
			"reviewed_by":      nil,
			"reviewed_at":      nil,
			"rejection_reason": "",
		}
		if err := h.db.Model(&models.KYC{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
			discardDocuments(frontPath, backPath, selfiePath)
			utils.WriteError(w, "resubmit kyc", err)
			return
		}
		// The record points at the new files now; the old ones go the same
		// way as a failed submission's.
		discardDocuments(existing.DocumentFront, existing.DocumentBack, existing.SelfiePath)
		if err := h.db.First(&record, existing.ID).Error; err != nil {
			utils.WriteError(w, "reload kyc record", err)
			return
		}
		utils.WriteSuccess(w, http.StatusOK, "KYC resubmitted successfully", map[string]interface{}{"kyc": record})
		return
	}

	if err := h.db.Create(&record).Error; err != nil {
		discardDocuments(frontPath, backPath, selfiePath)
		utils.WriteError(w, "create kyc record", err)
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, "KYC submitted successfully", map[string]interface{}{"kyc": record})
}

func (h *Handler) handleGetOwnSubmission(w http.ResponseWriter, r *http.Request) {
	actorID, _ := utils.GetUserIDFromContext(r.Context())

	var record models.KYC
	if err := h.db.Where("user_id = ?", actorID).First(&record).Error; err != nil {
		utils.WriteNotFound(w, "KYC record")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"kyc": record})
}

func (h *Handler) handleGetSubmissions(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := utils.ParsePagination(r)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, err.Error(), "invalid-pagination")
		return
	}

	query := h.db.Model(&models.KYC{}).Preload("User")
	if status := r.URL.Query().Get("status"); status != "" {
		if !models.ValidKYCStatus(status) {
			utils.WriteFail(w, http.StatusBadRequest, "status must be one of pending, approved, rejected", "validation-error")
			return
		}
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.WriteError(w, "count kyc records", err)
		return
	}

	var records []models.KYC
	if err := query.Order("id").Offset(utils.Offset(page, perPage)).Limit(perPage).Find(&records).Error; err != nil {
		utils.WriteError(w, "list kyc records", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{
		"kycRecords":      records,
		"page":            page,
		"perPage":         perPage,
		"totalPages":      utils.TotalPages(total, perPage),
		"totalKycRecords": total,
	})
}

func (h *Handler) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	actorID, _ := utils.GetUserIDFromContext(r.Context())
	role, _ := utils.GetRoleFromContext(r.Context())

	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid KYC record ID", "validation-error")
		return
	}

	query := h.db.Preload("User")
	if role != models.RoleAdmin {
		query = query.Where("user_id = ?", actorID)
	}

	var record models.KYC
	if err := query.First(&record, id).Error; err != nil {
		utils.WriteNotFound(w, "KYC record")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"kyc": record})
}

func (h *Handler) handleReviewSubmission(w http.ResponseWriter, r *http.Request) {
	actorID, _ := utils.GetUserIDFromContext(r.Context())

	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid KYC record ID", "validation-error")
		return
	}

	var reviewRequest struct {
		Status          string `json:"status"`
		RejectionReason string `json:"rejectionReason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reviewRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}

	if reviewRequest.Status != models.KYCApproved && reviewRequest.Status != models.KYCRejected {
		utils.WriteFail(w, http.StatusBadRequest, "status must be approved or rejected", "validation-error")
		return
	}
	if reviewRequest.Status == models.KYCRejected && reviewRequest.RejectionReason == "" {
		utils.WriteFail(w, http.StatusBadRequest, "rejectionReason is required when rejecting", "validation-error")
		return
	}

	var record models.KYC
	if err := h.db.First(&record, id).Error; err != nil {
		utils.WriteNotFound(w, "KYC record")
		return
	}

	now := time.Now()
	record.Status = reviewRequest.Status
	record.ReviewedBy = &actorID
	record.ReviewedAt = &now
	if reviewRequest.Status == models.KYCRejected {
		record.RejectionReason = reviewRequest.RejectionReason
	} else {
		record.RejectionReason = ""
	}

	if err := h.db.Save(&record).Error; err != nil {
		utils.WriteError(w, "review kyc record", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "KYC review recorded", map[string]interface{}{"kyc": record})
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	actorID, _ := utils.GetUserIDFromContext(r.Context())
	role, _ := utils.GetRoleFromContext(r.Context())

	vars := mux.Vars(r)
	filename := vars["filename"]

	filePath, err := utils.DocumentFilePath(filename)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid filename", "validation-error")
		return
	}

	if role != models.RoleAdmin {
		var count int64
		err := h.db.Model(&models.KYC{}).
			Where("user_id = ? AND (document_front = ? OR document_back = ? OR selfie_path = ?)",
				actorID, filename, filename, filename).
			Count(&count).Error
		if err != nil {
			utils.WriteError(w, "check document ownership", err)
			return
		}
		if count == 0 {
			utils.WriteNotFound(w, "Document")
			return
		}
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		utils.WriteNotFound(w, "Document")
		return
	}

	http.ServeFile(w, r, filePath)
}
