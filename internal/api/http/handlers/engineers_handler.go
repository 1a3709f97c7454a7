package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/api/dto"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/internal/service"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// EngineersHandler manages engineer auth and listing endpoints.
type EngineersHandler struct {
	authService *service.AuthService
	engineers   repository.EngineerRepository
}

// NewEngineersHandler constructs handler.
func NewEngineersHandler(authService *service.AuthService, engineers repository.EngineerRepository) *EngineersHandler {
	return &EngineersHandler{authService: authService, engineers: engineers}
}

// Login POST /auth/engineers/login.
func (h *EngineersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}
	engineer, token, expiresAt, err := h.authService.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Engineer:  engineerResponse(engineer),
	}})
}

// Register POST /engineers.
func (h *EngineersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterEngineerRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	engineer, err := h.authService.RegisterEngineer(c.Context(), service.EngineerRegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": engineerResponse(engineer)})
}

// List GET /engineers.
func (h *EngineersHandler) List(c *fiber.Ctx) error {
	active := true
	list, err := h.engineers.List(c.Context(), repository.EngineerFilter{Active: &active, Limit: 200})
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.EngineerResponse, 0, len(list))
	for i := range list {
		items = append(items, engineerResponse(&list[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func engineerResponse(engineer *domain.Engineer) dto.EngineerResponse {
	return dto.EngineerResponse{
		ID:     engineer.ID,
		Name:   engineer.Name,
		Email:  engineer.Email,
		Role:   engineer.Role,
		Active: engineer.Active,
	}
}
