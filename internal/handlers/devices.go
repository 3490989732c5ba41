package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/inspectd/internal/services"
	"github.com/charlesng35/inspectd/pkg/response"
)

// DeviceHandler registers push devices and toggles their sessions.
type DeviceHandler struct {
	devices *services.PushTokenService
}

// NewDeviceHandler constructs a DeviceHandler.
func NewDeviceHandler(devices *services.PushTokenService) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

type deviceLoginRequest struct {
	DeviceID string `json:"device_id" validate:"required,max=255"`
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,platform"`
}

type deviceRequest struct {
	DeviceID string `json:"device_id" validate:"required"`
}

type deviceNotificationsRequest struct {
	DeviceID string `json:"device_id" validate:"required"`
	Active   *bool  `json:"active" validate:"required"`
}

// Login handles POST /api/devices/login.
func (h *DeviceHandler) Login(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req deviceLoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	device, err := h.devices.Login(requestContext(c), services.DeviceLoginInput{
		UserID:   userID,
		DeviceID: req.DeviceID,
		Token:    req.Token,
		Platform: req.Platform,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, device)
}

// Logout handles POST /api/devices/logout.
func (h *DeviceHandler) Logout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req deviceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.devices.Logout(requestContext(c), userID, req.DeviceID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}

// SetNotifications handles PATCH /api/devices/notifications.
func (h *DeviceHandler) SetNotifications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req deviceNotificationsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.devices.SetNotificationsActive(requestContext(c), userID, req.DeviceID, *req.Active); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"notifications_active": *req.Active})
}
