package user

import (
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/gomail.v2"
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
	router.HandleFunc("/auth/register", h.handleRegister).Methods("POST")
	router.HandleFunc("/auth/verify-email", h.handleVerifyEmail).Methods("POST")
	router.HandleFunc("/auth/login", h.handleLogin).Methods("POST")
	router.HandleFunc("/auth/refresh", h.handleRefreshToken).Methods("POST")
	router.HandleFunc("/auth/forgot-password", h.handleForgotPassword).Methods("POST")
	router.HandleFunc("/auth/reset-password", h.handleResetPassword).Methods("POST")

	router.HandleFunc("/users", utils.AuthMiddleware(utils.AdminMiddleware(h.handleGetUsers))).Methods("GET")
	router.HandleFunc("/users", utils.AuthMiddleware(utils.AdminMiddleware(h.handleBulkDeleteUsers))).Methods("DELETE")
	router.HandleFunc("/users/{id}", utils.AuthMiddleware(h.handleGetUser)).Methods("GET")
	router.HandleFunc("/users/{id}", utils.AuthMiddleware(h.handleUpdateUser)).Methods("PUT")
	router.HandleFunc("/users/{id}", utils.AuthMiddleware(utils.AdminMiddleware(h.handleDeleteUser))).Methods("DELETE")
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var registerRequest struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Phone    string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&registerRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}

	registerRequest.Email = strings.ToLower(strings.TrimSpace(registerRequest.Email))
	if registerRequest.FullName == "" || registerRequest.Email == "" || registerRequest.Password == "" || registerRequest.Phone == "" {
		utils.WriteFail(w, http.StatusBadRequest, "fullName, email, password and phone are required", "validation-error")
		return
	}
	if len(registerRequest.Password) < 6 {
		utils.WriteFail(w, http.StatusBadRequest, "Password must be at least 6 characters long", "validation-error")
		return
	}

	var existingUser models.User
	if result := h.db.Where("email = ? OR phone = ?", registerRequest.Email, registerRequest.Phone).First(&existingUser); !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		if result.Error != nil {
			utils.WriteError(w, "register lookup", result.Error)
			return
		}
		var errorMessage string
		if existingUser.Email == registerRequest.Email {
			errorMessage = "Email is already in use"
		} else {
			errorMessage = "Phone number is already in use"
		}
		utils.WriteFail(w, http.StatusConflict, errorMessage, "user-exists")
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(registerRequest.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteError(w, "hash password", err)
		return
	}

	verificationCode := fmt.Sprintf("%06d", rand.Intn(1000000))
	verificationExpiry := time.Now().Add(15 * time.Minute)

	user := models.User{
		FullName:              registerRequest.FullName,
		Email:                 registerRequest.Email,
		PasswordHash:          string(passwordHash),
		Phone:                 registerRequest.Phone,
		Role:                  models.RoleUser,
		EmailVerificationCode: verificationCode,
		VerificationExpiry:    verificationExpiry,
	}

	if err := h.db.Create(&user).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE constraint") {
			utils.WriteFail(w, http.StatusConflict, "Email or phone number is already in use", "user-exists")
			return
		}
		utils.WriteError(w, "create user", err)
		return
	}

	go func() {
		if err := sendCodeEmail(user.Email, "Email Verification Code", verificationCode); err != nil {
			log.Printf("failed to send verification email to user %d: %v", user.ID, err)
		}
	}()

	utils.WriteSuccess(w, http.StatusCreated, "User registered successfully. Please check your email for the verification code.", map[string]interface{}{
		"user": user,
	})
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid request body", "validation-error")
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", strings.ToLower(strings.TrimSpace(request.Email))).First(&user).Error; err != nil {
		utils.WriteNotFound(w, "User")
		return
	}

	if user.EmailVerificationCode == "" || user.EmailVerificationCode != request.Code || time.Now().After(user.VerificationExpiry) {
		utils.WriteFail(w, http.StatusUnauthorized, "Invalid or expired verification code", "invalid-code")
		return
	}

	user.EmailVerified = true
	user.EmailVerificationCode = ""
	user.VerificationExpiry = time.Time{}

	if err := h.db.Save(&user).Error; err != nil {
		utils.WriteError(w, "verify email", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Email verified successfully", nil)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&loginRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid request body", "validation-error")
		return
	}

	var user models.User
	result := h.db.Where("email = ?", strings.ToLower(strings.TrimSpace(loginRequest.Email))).First(&user)
	if result.Error != nil {
		utils.WriteFail(w, http.StatusUnauthorized, "Invalid credentials", "invalid-credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(loginRequest.Password)); err != nil {
		utils.WriteFail(w, http.StatusUnauthorized, "Invalid credentials", "invalid-credentials")
		return
	}

	if !user.EmailVerified {
		utils.WriteFail(w, http.StatusForbidden, "Email is not verified", "email-not-verified")
		return
	}

	accessToken, err := generateAccessToken(&user)
	if err != nil {
		utils.WriteError(w, "generate access token", err)
		return
	}

	refreshToken, err := generateRefreshToken(user.ID)
	if err != nil {
		utils.WriteError(w, "generate refresh token", err)
		return
	}

	if err := saveRefreshToken(h.db, user.ID, refreshToken); err != nil {
		utils.WriteError(w, "save refresh token", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Login successful", map[string]interface{}{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
		"user":         user,
	})
}

func (h *Handler) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var refreshRequest struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&refreshRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid request body", "validation-error")
		return
	}
	if refreshRequest.RefreshToken == "" {
		utils.WriteFail(w, http.StatusBadRequest, "refreshToken is required", "validation-error")
		return
	}

	tx := h.db.Begin()

	var user models.User
	if err := tx.Where("refresh_token = ?", refreshRequest.RefreshToken).First(&user).Error; err != nil {
		tx.Rollback()
		utils.WriteFail(w, http.StatusUnauthorized, "Invalid refresh token", "invalid-refresh-token")
		return
	}

	if user.RefreshTokenExpiredAt.Before(time.Now()) {
		tx.Rollback()
		utils.WriteFail(w, http.StatusUnauthorized, "Refresh token expired", "invalid-refresh-token")
		return
	}

	newAccessToken, err := generateAccessToken(&user)
	if err != nil {
		tx.Rollback()
		utils.WriteError(w, "generate access token", err)
		return
	}

	newRefreshToken, err := generateRefreshToken(user.ID)
	if err != nil {
		tx.Rollback()
		utils.WriteError(w, "generate refresh token", err)
		return
	}

	// Rotation: the presented token is overwritten and cannot be replayed.
	updateResult := tx.Model(&user).Updates(map[string]interface{}{
		"refresh_token":            newRefreshToken,
		"refresh_token_expired_at": time.Now().Add(30 * 24 * time.Hour),
	})
	if updateResult.Error != nil {
		tx.Rollback()
		utils.WriteError(w, "rotate refresh token", updateResult.Error)
		return
	}

	if err := tx.Commit().Error; err != nil {
		utils.WriteError(w, "commit token refresh", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Token refreshed", map[string]interface{}{
		"accessToken":  newAccessToken,
		"refreshToken": newRefreshToken,
	})
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var resetRequest struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&resetRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid request body", "validation-error")
		return
	}
	if resetRequest.Email == "" {
		utils.WriteFail(w, http.StatusBadRequest, "Email is required", "validation-error")
		return
	}

	// The response never discloses whether the account exists.
	vagueMessage := "If an account exists, a reset code will be sent to your email"

	var user models.User
	if err := h.db.Where("email = ?", strings.ToLower(strings.TrimSpace(resetRequest.Email))).First(&user).Error; err != nil {
		utils.WriteSuccess(w, http.StatusOK, vagueMessage, nil)
		return
	}

	resetCode := fmt.Sprintf("%06d", rand.Intn(1000000))

	tx := h.db.Begin()

	if err := tx.Where("user_id = ?", user.ID).Delete(&models.PasswordResetToken{}).Error; err != nil {
		tx.Rollback()
		utils.WriteError(w, "purge reset tokens", err)
		return
	}

	resetToken := models.PasswordResetToken{
		UserID:    user.ID,
		Token:     resetCode,
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	if err := tx.Create(&resetToken).Error; err != nil {
		tx.Rollback()
		utils.WriteError(w, "create reset token", err)
		return
	}

	if err := tx.Commit().Error; err != nil {
		utils.WriteError(w, "commit reset request", err)
		return
	}

	go func() {
		if err := sendCodeEmail(user.Email, "Password Reset Code", resetCode); err != nil {
			log.Printf("failed to send reset email to user %d: %v", user.ID, err)
		}
	}()

	utils.WriteSuccess(w, http.StatusOK, vagueMessage, nil)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var resetRequest struct {
		Email    string `json:"email"`
		Code     string `json:"code"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&resetRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid request body", "validation-error")
		return
	}
	if len(resetRequest.Password) < 6 {
		utils.WriteFail(w, http.StatusBadRequest, "Password must be at least 6 characters long", "validation-error")
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", strings.ToLower(strings.TrimSpace(resetRequest.Email))).First(&user).Error; err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid email or code", "invalid-code")
		return
	}

	var resetToken models.PasswordResetToken
	if err := h.db.Where("user_id = ? AND token = ?", user.ID, resetRequest.Code).First(&resetToken).Error; err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid email or code", "invalid-code")
		return
	}
	if time.Now().After(resetToken.ExpiresAt) {
		utils.WriteFail(w, http.StatusBadRequest, "Reset code expired", "invalid-code")
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(resetRequest.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteError(w, "hash password", err)
		return
	}

	tx := h.db.Begin()

	if err := tx.Model(&user).Update("password_hash", string(passwordHash)).Error; err != nil {
		tx.Rollback()
		utils.WriteError(w, "update password", err)
		return
	}

	// The code is single-use.
	if err := tx.Delete(&resetToken).Error; err != nil {
		tx.Rollback()
		utils.WriteError(w, "consume reset token", err)
		return
	}

	if err := tx.Commit().Error; err != nil {
		utils.WriteError(w, "commit password reset", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Password reset successful", nil)
}

func (h *Handler) handleGetUsers(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := utils.ParsePagination(r)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, err.Error(), "invalid-pagination")
		return
	}

	query := h.db.Model(&models.User{})

	if role := r.URL.Query().Get("role"); role != "" {
		if !models.ValidRole(role) {
			utils.WriteFail(w, http.StatusBadRequest, "Invalid role filter", "validation-error")
			return
		}
		query = query.Where("role = ?", role)
	}
	if search := r.URL.Query().Get("search"); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("full_name ILIKE ? OR email ILIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.WriteError(w, "count users", err)
		return
	}

	var users []models.User
	if err := query.Order("id").Offset(utils.Offset(page, perPage)).Limit(perPage).Find(&users).Error; err != nil {
		utils.WriteError(w, "list users", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{
		"users":      users,
		"page":       page,
		"perPage":    perPage,
		"totalPages": utils.TotalPages(total, perPage),
		"totalUsers": total,
	})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid user ID", "validation-error")
		return
	}

	actorID, _ := utils.GetUserIDFromContext(r.Context())
	role, _ := utils.GetRoleFromContext(r.Context())
	if !utils.CanAccess(role, actorID, uint(userID)) {
		utils.WriteNotFound(w, "User")
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		utils.WriteNotFound(w, "User")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"user": user})
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid user ID", "validation-error")
		return
	}

	actorID, _ := utils.GetUserIDFromContext(r.Context())
	role, _ := utils.GetRoleFromContext(r.Context())
	if !utils.CanAccess(role, actorID, uint(userID)) {
		utils.WriteNotFound(w, "User")
		return
	}

	var updateData struct {
		FullName *string `json:"fullName"`
		Phone    *string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updateData); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}
	if updateData.FullName == nil && updateData.Phone == nil {
		utils.WriteFail(w, http.StatusBadRequest, "At least one field must be provided", "validation-error")
		return
	}
	if updateData.FullName != nil && *updateData.FullName == "" {
		utils.WriteFail(w, http.StatusBadRequest, "fullName cannot be empty", "validation-error")
		return
	}
	if updateData.Phone != nil && *updateData.Phone == "" {
		utils.WriteFail(w, http.StatusBadRequest, "phone cannot be empty", "validation-error")
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		utils.WriteNotFound(w, "User")
		return
	}

	if updateData.FullName != nil {
		user.FullName = *updateData.FullName
	}
	if updateData.Phone != nil {
		user.Phone = *updateData.Phone
	}

	if err := h.db.Save(&user).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE constraint") {
			utils.WriteFail(w, http.StatusConflict, "Phone number is already in use", "user-exists")
			return
		}
		utils.WriteError(w, "update user", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "User updated successfully", map[string]interface{}{"user": user})
}

// handleDeleteUser removes a user together with every record keyed by the
// user id. The whole cascade runs in one transaction: either the user and
// all dependents go, or nothing does.
func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid user ID", "validation-error")
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		utils.WriteNotFound(w, "User")
		return
	}

	tx := h.db.Begin()
	if err := deleteUserCascade(tx, []uint{user.ID}); err != nil {
		tx.Rollback()
		utils.WriteError(w, "delete user cascade", err)
		return
	}
	if err := tx.Commit().Error; err != nil {
		utils.WriteError(w, "commit user delete", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "User deleted successfully", nil)
}

func (h *Handler) handleBulkDeleteUsers(w http.ResponseWriter, r *http.Request) {
	var request struct {
		IDs []uint `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}

	if err := validateBulkIDs(request.IDs); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, err.Error(), "validation-error")
		return
	}

	ids := dedupeIDs(request.IDs)

	tx := h.db.Begin()

	var existing []uint
	if err := tx.Model(&models.User{}).Where("id IN ?", ids).Pluck("id", &existing).Error; err != nil {
		tx.Rollback()
		utils.WriteError(w, "resolve users for bulk delete", err)
		return
	}

	if len(existing) > 0 {
		if err := deleteUserCascade(tx, existing); err != nil {
			tx.Rollback()
			utils.WriteError(w, "bulk delete cascade", err)
			return
		}
	}

	if err := tx.Commit().Error; err != nil {
		utils.WriteError(w, "commit bulk delete", err)
		return
	}

	deleted := len(existing)
	// Duplicates collapse before the lookup, so only distinct ids without
	// a row count as not found.
	notFound := len(ids) - deleted
	utils.WriteSuccess(w, http.StatusOK, "Users deleted", map[string]interface{}{
		"deletedCount":   deleted,
		"requestedCount": len(request.IDs),
		"notFoundCount":  notFound,
	})
}

// deleteUserCascade removes every row owned by the given users, dependents
// first and the user rows last. Callers own the surrounding transaction.
func deleteUserCascade(tx *gorm.DB, userIDs []uint) error {
	if err := tx.Where("user_id IN ?", userIDs).Delete(&models.BotSubscription{}).Error; err != nil {
		return fmt.Errorf("deleting subscriptions: %w", err)
	}
	if err := tx.Where("user_id IN ?", userIDs).Delete(&models.KYC{}).Error; err != nil {
		return fmt.Errorf("deleting kyc records: %w", err)
	}
	if err := tx.Where("user_id IN ?", userIDs).Delete(&models.PlatformCredential{}).Error; err != nil {
		return fmt.Errorf("deleting platform credentials: %w", err)
	}
	if err := tx.Where("user_id IN ?", userIDs).Delete(&models.Signal{}).Error; err != nil {
		return fmt.Errorf("deleting signals: %w", err)
	}
	if err := tx.Where("user_id IN ?", userIDs).Delete(&models.Device{}).Error; err != nil {
		return fmt.Errorf("deleting devices: %w", err)
	}
	if err := tx.Where("user_id IN ?", userIDs).Delete(&models.NotificationHistory{}).Error; err != nil {
		return fmt.Errorf("deleting notification history: %w", err)
	}
	if err := tx.Where("user_id IN ?", userIDs).Delete(&models.PasswordResetToken{}).Error; err != nil {
		return fmt.Errorf("deleting reset tokens: %w", err)
	}
	if err := tx.Where("id IN ?", userIDs).Delete(&models.User{}).Error; err != nil {
		return fmt.Errorf("deleting users: %w", err)
	}
	return nil
}

func validateBulkIDs(ids []uint) error {
	if len(ids) == 0 {
		return errors.New("ids must be a non-empty list")
	}
	for _, id := range ids {
		if id == 0 {
			return errors.New("ids must be positive integers")
		}
	}
	return nil
}

func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func generateAccessToken(user *models.User) (string, error) {
	claims := utils.Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(user.ID),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(7 * 24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(os.Getenv("SECRET_KEY")))
}

func generateRefreshToken(userID uint) (string, error) {
	b := make([]byte, 32)
	if _, err := crand.Read(b); err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, []byte(os.Getenv("SECRET_KEY")))
	mac.Write([]byte(fmt.Sprintf("%d", userID)))
	mac.Write(b)

	signature := mac.Sum(nil)
	return fmt.Sprintf("%d_%x_%x", userID, b, signature), nil
}

func saveRefreshToken(db *gorm.DB, userID uint, refreshToken string) error {
	return db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"refresh_token":            refreshToken,
		"refresh_token_expired_at": time.Now().Add(30 * 24 * time.Hour),
	}).Error
}

func sendCodeEmail(email, subject, code string) error {
	smtpHost := os.Getenv("SMTP_HOST")
	smtpPort := os.Getenv("SMTP_PORT")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")

	m := gomail.NewMessage()
	m.SetHeader("From", smtpUser)
	m.SetHeader("To", email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", fmt.Sprintf("Your code is: %s. Ignore this email if you did not request it.", code))

	port, err := strconv.Atoi(smtpPort)
	if err != nil {
		return fmt.Errorf("invalid SMTP port: %v", err)
	}
	d := gomail.NewDialer(smtpHost, port, smtpUser, smtpPass)

	return d.DialAndSend(m)
}
