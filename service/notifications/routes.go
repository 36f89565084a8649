package notifications

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"gorm.io/gorm"

	"github.com/finfx/finfx-server/cmd/models"
	"github.com/finfx/finfx-server/cmd/utils"
)

// Pusher owns the Expo client and fans push messages out to registered
// devices. Send failures are logged and recorded in history, never
// propagated to the request that triggered them.
type Pusher struct {
	db         *gorm.DB
	expoClient *expo.PushClient
}

func NewPusher(db *gorm.DB) *Pusher {
	return &Pusher{
		db:         db,
		expoClient: expo.NewPushClient(nil),
	}
}

// NotifyBotSubscribers alerts every user holding an active subscription
// to the bot that a new signal arrived.
func (p *Pusher) NotifyBotSubscribers(botID uint, pairName, direction string) {
	var bot models.Bot
	if err := p.db.First(&bot, botID).Error; err != nil {
		log.Printf("signal push: bot %d not found: %v", botID, err)
		return
	}

	var userIDs []uint
	err := p.db.Model(&models.BotSubscription{}).
		Where("bot_id = ? AND status = ?", botID, models.SubscriptionActive).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		log.Printf("signal push: resolving subscribers of bot %d: %v", botID, err)
		return
	}
	if len(userIDs) == 0 {
		return
	}

	title := fmt.Sprintf("New signal from %s", bot.Name)
	body := fmt.Sprintf("%s %s", direction, pairName)
	data := map[string]interface{}{
		"botId":     fmt.Sprint(botID),
		"pairName":  pairName,
		"direction": direction,
	}

	if _, err := p.SendToUsers(userIDs, title, body, data); err != nil {
		log.Printf("signal push for bot %d: %v", botID, err)
	}
}

// SendToUsers pushes one message to every device of the given users and
// records a history row per user. It returns the number of devices
// targeted.
func (p *Pusher) SendToUsers(userIDs []uint, title, body string, data map[string]interface{}) (int, error) {
	var devices []models.Device
	if err := p.db.Where("user_id IN ?", userIDs).Find(&devices).Error; err != nil {
		return 0, err
	}
	if len(devices) == 0 {
		return 0, nil
	}

	tokens := make([]string, 0, len(devices))
	userSet := make(map[uint]bool)
	for _, device := range devices {
		tokens = append(tokens, device.Token)
		userSet[device.UserID] = true
	}

	sendErr := p.publish(tokens, title, body, data)

	status := models.NotificationSent
	if sendErr != nil {
		status = models.NotificationFailed
	}

	dataJSON, _ := json.Marshal(data)
	for userID := range userSet {
		history := models.NotificationHistory{
			UserID: userID,
			Title:  title,
			Body:   body,
			Data:   string(dataJSON),
			Status: status,
			SentAt: time.Now(),
		}
		if err := p.db.Create(&history).Error; err != nil {
			log.Printf("recording notification history for user %d: %v", userID, err)
		}
	}

	return len(tokens), sendErr
}

func (p *Pusher) publish(tokenStrings []string, title, body string, data map[string]interface{}) error {
	var validTokens []expo.ExponentPushToken
	var invalidTokens []string

	for _, tokenString := range tokenStrings {
		pushToken, err := expo.NewExponentPushToken(tokenString)
		if err != nil {
			log.Printf("invalid push token %s: %v", tokenString, err)
			invalidTokens = append(invalidTokens, tokenString)
			continue
		}
		validTokens = append(validTokens, pushToken)
	}

	if len(invalidTokens) > 0 {
		p.cleanupInvalidTokens(invalidTokens)
	}
	if len(validTokens) == 0 {
		return fmt.Errorf("no valid push tokens found")
	}

	var stringData map[string]string
	if data != nil {
		stringData = make(map[string]string)
		for key, value := range data {
			stringData[key] = fmt.Sprintf("%v", value)
		}
	}

	pushMessage := &expo.PushMessage{
		To:       validTokens,
		Body:     body,
		Title:    title,
		Sound:    "default",
		Priority: expo.DefaultPriority,
		Data:     stringData,
	}

	response, err := p.expoClient.Publish(pushMessage)
	if err != nil {
		return fmt.Errorf("failed to publish notification: %v", err)
	}
	if validationErr := response.ValidateResponse(); validationErr != nil {
		return fmt.Errorf("notification validation failed: %v", validationErr)
	}

	return nil
}

func (p *Pusher) cleanupInvalidTokens(tokens []string) {
	for _, token := range tokens {
		if err := p.db.Where("token = ?", token).Delete(&models.Device{}).Error; err != nil {
			log.Printf("cleaning up invalid token %s: %v", token, err)
		}
	}
}

type NotificationHandler struct {
	db     *gorm.DB
	pusher *Pusher
}

func NewNotificationHandler(db *gorm.DB, pusher *Pusher) *NotificationHandler {
	return &NotificationHandler{db: db, pusher: pusher}
}

func (h *NotificationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/devices", utils.AuthMiddleware(h.RegisterDevice)).Methods("POST")
	router.HandleFunc("/devices/{id:[0-9]+}", utils.AuthMiddleware(h.DeleteDevice)).Methods("DELETE")
	router.HandleFunc("/users/{userId:[0-9]+}/notifications", utils.AuthMiddleware(h.GetUserNotificationHistory)).Methods("GET")
	router.HandleFunc("/notifications/broadcast", utils.AuthMiddleware(utils.AdminMiddleware(h.BroadcastNotification))).Methods("POST")
}

// RegisterDevice stores the caller's Expo push token. Registering an
// already-known token just refreshes the device metadata.
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	actorID, _ := utils.GetUserIDFromContext(r.Context())

	var registerRequest struct {
		Token      string `json:"token"`
		DeviceType string `json:"deviceType"`
		DeviceName string `json:"deviceName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&registerRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}

	if registerRequest.Token == "" {
		utils.WriteFail(w, http.StatusBadRequest, "token is required", "validation-error")
		return
	}
	if _, err := expo.NewExponentPushToken(registerRequest.Token); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid Expo push token format", "validation-error")
		return
	}

	var device models.Device
	result := h.db.Where("token = ? AND user_id = ?", registerRequest.Token, actorID).First(&device)
	if result.Error == nil {
		device.DeviceType = registerRequest.DeviceType
		device.DeviceName = registerRequest.DeviceName
		if err := h.db.Save(&device).Error; err != nil {
			utils.WriteError(w, "update device", err)
			return
		}
	} else {
		device = models.Device{
			Token:      registerRequest.Token,
			UserID:     actorID,
			DeviceType: registerRequest.DeviceType,
			DeviceName: registerRequest.DeviceName,
		}
		if err := h.db.Create(&device).Error; err != nil {
			utils.WriteError(w, "create device", err)
			return
		}
	}

	utils.WriteSuccess(w, http.StatusOK, "Device registered successfully", map[string]interface{}{"device": device})
}

func (h *NotificationHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	deviceID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid device ID", "validation-error")
		return
	}

	actorID, _ := utils.GetUserIDFromContext(r.Context())
	role, _ := utils.GetRoleFromContext(r.Context())

	query := h.db
	if role != models.RoleAdmin {
		query = query.Where("user_id = ?", actorID)
	}

	result := query.Delete(&models.Device{}, deviceID)
	if result.Error != nil {
		utils.WriteError(w, "delete device", result.Error)
		return
	}
	if result.RowsAffected == 0 {
		utils.WriteNotFound(w, "Device")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Device deleted successfully", nil)
}

func (h *NotificationHandler) GetUserNotificationHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["userId"], 10, 64)
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

	page, perPage, err := utils.ParsePagination(r)
	if err != nil {
		utils.WriteFail(w, http.StatusBadRequest, err.Error(), "invalid-pagination")
		return
	}

	var total int64
	if err := h.db.Model(&models.NotificationHistory{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		utils.WriteError(w, "count notifications", err)
		return
	}

	history := make([]models.NotificationHistory, 0)
	err = h.db.Where("user_id = ?", userID).
		Order("sent_at DESC").
		Offset(utils.Offset(page, perPage)).
		Limit(perPage).
		Find(&history).Error
	if err != nil {
		utils.WriteError(w, "list notification history", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{
		"notifications":      history,
		"page":               page,
		"perPage":            perPage,
		"totalPages":         utils.TotalPages(total, perPage),
		"totalNotifications": total,
	})
}

func (h *NotificationHandler) BroadcastNotification(w http.ResponseWriter, r *http.Request) {
	var broadcastRequest struct {
		Title   string                 `json:"title"`
		Body    string                 `json:"body"`
		Data    map[string]interface{} `json:"data,omitempty"`
		UserIDs []uint                 `json:"userIds,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&broadcastRequest); err != nil {
		utils.WriteFail(w, http.StatusBadRequest, "Invalid JSON input", "validation-error")
		return
	}

	if broadcastRequest.Title == "" || broadcastRequest.Body == "" {
		utils.WriteFail(w, http.StatusBadRequest, "title and body are required", "validation-error")
		return
	}

	userIDs := broadcastRequest.UserIDs
	if len(userIDs) == 0 {
		if err := h.db.Model(&models.Device{}).Distinct().Pluck("user_id", &userIDs).Error; err != nil {
			utils.WriteError(w, "resolve broadcast users", err)
			return
		}
	}
	if len(userIDs) == 0 {
		utils.WriteSuccess(w, http.StatusOK, "No devices registered", map[string]interface{}{"deviceCount": 0})
		return
	}

	deviceCount, err := h.pusher.SendToUsers(userIDs, broadcastRequest.Title, broadcastRequest.Body, broadcastRequest.Data)
	if err != nil {
		utils.WriteError(w, "broadcast notification", err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, fmt.Sprintf("Broadcast sent to %d devices", deviceCount), map[string]interface{}{
		"deviceCount": deviceCount,
	})
}
