package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope every /api endpoint answers with. CorrelationID echoes the
// identifier the request was logged and traced under, so a failed generation can be looked up.
type APIResponse struct {
	Success       bool        `json:"success"`
	Data          interface{} `json:"data,omitempty"`
	Message       string      `json:"message"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}

// SendSuccess answers 200 with data.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus answers a success envelope with an explicit status code.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	return send(c, status, true, orDefault(message, "success"), data)
}

// SendError answers a failure envelope without data.
func SendError(c *fiber.Ctx, status int, message string) error {
	return send(c, status, false, orDefault(message, "error"), nil)
}

// SendErrorWithData answers a failure envelope that still carries a payload, such as the generated
// query that failed to execute or a zero-metrics evaluation report.
func SendErrorWithData(c *fiber.Ctx, status int, message string, data interface{}) error {
	return send(c, status, false, orDefault(message, "error"), data)
}

func send(c *fiber.Ctx, status int, success bool, message string, data interface{}) error {
	correlationID, _ := c.Locals("correlation_id").(string)
	return c.Status(status).JSON(APIResponse{
		Success:       success,
		Data:          data,
		Message:       message,
		CorrelationID: correlationID,
	})
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
