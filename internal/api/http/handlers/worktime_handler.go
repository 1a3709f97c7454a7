package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/api/dto"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/service"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// WorkTimeHandler manages check-in/check-out endpoints.
type WorkTimeHandler struct {
	service *service.WorkTimeService
}

// NewWorkTimeHandler constructs handler.
func NewWorkTimeHandler(workTimeService *service.WorkTimeService) *WorkTimeHandler {
	return &WorkTimeHandler{service: workTimeService}
}

// CheckIn POST /worktime/check-in.
func (h *WorkTimeHandler) CheckIn(c *fiber.Ctx) error {
	actor, err := requireEngineer(c)
	if err != nil {
		return err
	}
	session, err := h.service.CheckIn(c.Context(), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionResponse(session, false)})
}

// CheckOut POST /worktime/check-out.
func (h *WorkTimeHandler) CheckOut(c *fiber.Ctx) error {
	actor, err := requireEngineer(c)
	if err != nil {
		return err
	}
	var req dto.CheckOutRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	session, err := h.service.CheckOut(c.Context(), actor.ID, req.Automatic)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": sessionResponse(session, req.Automatic)})
}

// Projection GET /worktime.
func (h *WorkTimeHandler) Projection(c *fiber.Ctx) error {
	actor, err := requireEngineer(c)
	if err != nil {
		return err
	}
	session, projected, err := h.service.Projection(c.Context(), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.WorkTimeProjectionResponse{
		EngineerID:        session.EngineerID,
		IsCheckedIn:       session.IsCheckedIn,
		DailyTotalMinutes: projected,
	}})
}

func sessionResponse(session *domain.WorkSession, autoCheckout bool) dto.WorkSessionResponse {
	return dto.WorkSessionResponse{
		EngineerID:        session.EngineerID,
		WorkDate:          session.WorkDate.Format("2006-01-02"),
		IsCheckedIn:       session.IsCheckedIn,
		LastCheckIn:       session.LastCheckIn,
		BaseDailyMinutes:  session.BaseDailyMinutes,
		DailyTotalMinutes: session.DailyTotalMinutes,
		AutoCheckout:      autoCheckout,
	}
}
