package handlers

import (
	"net/http"
	"strings"

	"github.com/campuspulse/campuspulse/internal/auth"
	"github.com/campuspulse/campuspulse/internal/models"
	"github.com/campuspulse/campuspulse/internal/types"
	"github.com/campuspulse/campuspulse/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type CreateUserRequest struct {
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	Role       string `json:"role" binding:"omitempty,oneof=STUDENT ORGANIZER"`
	College    string `json:"college"`
	Department string `json:"department"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string             `json:"token"`
	User  types.UserResponse `json:"user"`
}

// Register creates a STUDENT or ORGANIZER account. Admins are provisioned
// out of band.
func (h *Handler) Register(ctx *gin.Context) {
	var req CreateUserRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		logger.Debugf("register: %v", err)
		badRequest(ctx, "Please provide name, a valid email, a password of at least 8 characters and a role of STUDENT or ORGANIZER")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Role == "" {
		req.Role = types.RoleStudent
	}

	db := h.db.WithContext(ctx.Request.Context())

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		respondError(ctx, errors.Annotate(err, "checking existing user"))
		return
	}

	if count > 0 {
		badRequest(ctx, "User already exists")
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)

	if err != nil {
		respondError(ctx, errors.Annotate(err, "hashing password"))
		return
	}

	user := models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		Role:         req.Role,
		College:      strings.TrimSpace(req.College),
		Department:   strings.TrimSpace(req.Department),
	}

	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			badRequest(ctx, "User already exists")
			return
		}
		respondError(ctx, errors.Annotate(err, "creating user"))
		return
	}

	h.issueToken(ctx, http.StatusCreated, user)
}

func (h *Handler) Login(ctx *gin.Context) {
	var req LoginUserRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "Please provide email and password")
		return
	}

	var user models.User

	err := h.db.WithContext(ctx.Request.Context()).
		Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).
		First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
			return
		}
		respondError(ctx, errors.Annotate(err, "loading user"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}

	h.issueToken(ctx, http.StatusOK, user)
}

func (h *Handler) issueToken(ctx *gin.Context, status int, user models.User) {
	token, err := auth.GenerateJWT(user.ID, user.Email, user.Role)

	if err != nil {
		respondError(ctx, errors.Annotate(err, "signing token"))
		return
	}

	ctx.JSON(status, AuthResponse{Token: token, User: types.NewUserResponse(user)})
}

func (h *Handler) Me(ctx *gin.Context) {
	current, err := utils.GetCurrentUser(ctx)

	if err != nil {
		respondError(ctx, err)
		return
	}

	var user models.User

	if err := h.db.WithContext(ctx.Request.Context()).First(&user, current.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, errors.NewNotFound(nil, "User not found"))
			return
		}
		respondError(ctx, errors.Annotate(err, "loading user"))
		return
	}

	ctx.JSON(http.StatusOK, types.NewUserResponse(user))
}
