package handlers

import (
	"errors"

	"chart-insights/internal/dto"
	"chart-insights/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	prefixImage = "Error analyzing image: "
	prefixTable = "Error analyzing data: "

	msgImageTooLarge = "Image is too large. Please upload an image under ~14 MB."
	msgReadFile      = "Failed to read the file: "
)

var kindStatus = map[service.ErrorKind]int{
	service.KindAuth:       fiber.StatusBadGateway,
	service.KindRateLimit:  fiber.StatusTooManyRequests,
	service.KindConnection: fiber.StatusServiceUnavailable,
	service.KindBadRequest: fiber.StatusUnprocessableEntity,
	service.KindAPI:        fiber.StatusBadGateway,
	service.KindUnknown:    fiber.StatusInternalServerError,
	service.KindSetup:      fiber.StatusServiceUnavailable,
}

// errorResponse maps a use-case error to a status and body. setupHelp is
// called only when the failure kind needs it.
func errorResponse(prefix string, err error, setupHelp func() string) (int, dto.ErrorResponse) {
	var fileErr *service.FileReadError
	switch {
	case errors.Is(err, service.ErrImageTooLarge):
		return fiber.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: msgImageTooLarge}
	case errors.As(err, &fileErr):
		return fiber.StatusBadRequest, dto.ErrorResponse{Error: msgReadFile + fileErr.Err.Error()}
	case service.IsInputError(err):
		return fiber.StatusBadRequest, dto.ErrorResponse{Error: err.Error()}
	case errors.Is(err, service.ErrNoProvider):
		return fiber.StatusServiceUnavailable, dto.ErrorResponse{Error: prefix + err.Error()}
	}

	kind, msg := service.Explain(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = fiber.StatusInternalServerError
	}

	resp := dto.ErrorResponse{Error: prefix + msg, Kind: string(kind)}
	if service.NeedsSetupHelp(kind) && setupHelp != nil {
		resp.SetupHelp = setupHelp()
	}
	return status, resp
}

func sendError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(dto.ErrorResponse{Error: msg})
}
