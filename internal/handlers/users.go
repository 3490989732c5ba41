package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/inspectd/internal/auth"
	"github.com/charlesng35/inspectd/internal/models"
	"github.com/charlesng35/inspectd/internal/services"
	"github.com/charlesng35/inspectd/pkg/response"
)

// UserHandler exposes registration, login and the admin account lifecycle.
type UserHandler struct {
	users *services.UserService
	jwt   *iauth.JWTService
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(users *services.UserService, jwt *iauth.JWTService) *UserHandler {
	return &UserHandler{users: users, jwt: jwt}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required,user_role"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int          `json:"expires_in"`
	User        *models.User `json:"user"`
}

// Register handles POST /api/users/register.
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Register(requestContext(c), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Login handles POST /api/users/login.
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Authenticate(requestContext(c), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.jwt.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, loginResponse{
		AccessToken: token,
		ExpiresIn:   int(h.jwt.TTL().Seconds()),
		User:        user,
	})
}

// Me handles GET /api/users/me.
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	user, err := h.users.Get(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// Approve handles POST /api/users/:id/approve.
func (h *UserHandler) Approve(c *gin.Context) {
	h.transition(c, h.users.Approve)
}

// Suspend handles POST /api/users/:id/suspend.
func (h *UserHandler) Suspend(c *gin.Context) {
	h.transition(c, h.users.Suspend)
}

// Unsuspend handles POST /api/users/:id/unsuspend.
func (h *UserHandler) Unsuspend(c *gin.Context) {
	h.transition(c, h.users.Unsuspend)
}

type userTransition func(ctx context.Context, userID, actorID string) (*models.User, error)

func (h *UserHandler) transition(c *gin.Context, apply userTransition) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}

	user, err := apply(requestContext(c), userID, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}
