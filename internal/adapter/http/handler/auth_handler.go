package handler

import (
	"net/http"

	"cross-border-escrow/internal/adapter/http/dto"
	"cross-border-escrow/internal/core/ports"
	"cross-border-escrow/pkg/apperror"
	"cross-border-escrow/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler serves party registration and login. Every escrow, dispute and
// wallet route requires the JWT minted here.
type AuthHandler struct {
	authSvc ports.AuthService
}

func NewAuthHandler(authSvc ports.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	party, err := h.authSvc.Register(c.Request.Context(), ports.RegisterRequest{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.RegisterResponse{
		PartyID:     party.ID.String(),
		Username:    party.Username,
		DisplayName: party.DisplayName,
	})
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	token, expiry, err := h.authSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.LoginResponse{
		Token:  token,
		Expiry: expiry.Unix(),
	})
}

// HealthCheck handles GET /health. It pings every registered dependency and
// reports 503 with a per-dependency breakdown when any of them is down.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	type checkResult struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}

	return func(c *gin.Context) {
		results := make(map[string]checkResult, len(checkers))
		failed := 0

		for _, chk := range checkers {
			if err := chk.Ping(c.Request.Context()); err != nil {
				results[chk.Name()] = checkResult{Status: "unhealthy", Error: err.Error()}
				failed++
				continue
			}
			results[chk.Name()] = checkResult{Status: "healthy"}
		}

		code := http.StatusOK
		overall := "healthy"
		if failed > 0 {
			code = http.StatusServiceUnavailable
			overall = "degraded"
		}

		c.JSON(code, gin.H{
			"status":       overall,
			"dependencies": results,
		})
	}
}
