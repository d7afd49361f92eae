package handlers

import (
	"errors"

	"activity-reward-system/services"

	"github.com/gofiber/fiber/v2"
)

// respondError maps service errors to a status and the usual error body.
func respondError(c *fiber.Ctx, msg string, err error) error {
	status := fiber.StatusInternalServerError
	code := ""
	switch {
	case errors.Is(err, services.ErrValidation):
		status, code = fiber.StatusBadRequest, "validation_error"
	case errors.Is(err, services.ErrInvalidName):
		status, code = fiber.StatusBadRequest, "invalid_name"
	case errors.Is(err, services.ErrNameTaken):
		status, code = fiber.StatusConflict, "name_taken"
	case errors.Is(err, services.ErrDuplicateSubmission):
		status, code = fiber.StatusConflict, "duplicate_submission"
	case errors.Is(err, services.ErrUserNotFound), errors.Is(err, services.ErrNonceNotFound):
		status, code = fiber.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrNonceExpired):
		status, code = fiber.StatusGone, "nonce_expired"
	}
	body := fiber.Map{"error": msg, "cause": err.Error()}
	if code != "" {
		body["code"] = code
	}
	return c.Status(status).JSON(body)
}

func badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid request body",
		"code":  "validation_error",
		"cause": err.Error(),
	})
}
