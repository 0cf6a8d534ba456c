package handlers

import (
	"io"
	"mime/multipart"
	"time"

	"chart-insights/internal/dto"
	"chart-insights/internal/models"
	"chart-insights/internal/service"
	"chart-insights/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AnalysisHandler struct {
	analysisService *service.AnalysisService
	sessionService  *service.SessionService
	logger          *zap.Logger
}

func NewAnalysisHandler(analysisService *service.AnalysisService, sessionService *service.SessionService, logger *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
		sessionService:  sessionService,
		logger:          logger,
	}
}

// AnalyzeImage godoc
// @Summary Analyze a chart image
// @Description Send an uploaded or camera-captured chart to the provider chain and return insights
// @Tags analysis
// @Accept multipart/form-data
// @Produce json
// @Param file formData file false "Chart image (PNG/JPEG)"
// @Param camera formData file false "Photo taken with the camera"
// @Security Bearer
// @Success 200 {object} dto.AnalysisResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 413 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /analyze/image [post]
func (h *AnalysisHandler) AnalyzeImage(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return sendError(c, fiber.StatusUnauthorized, "Session not found or expired")
	}

	// camera capture wins over an uploaded file, as on the web page
	file, err := c.FormFile("camera")
	if err != nil {
		file, err = c.FormFile("file")
	}
	if err != nil {
		return sendError(c, fiber.StatusBadRequest, "Image file is required")
	}
	if file.Size > service.MaxImageBytes {
		return sendError(c, fiber.StatusRequestEntityTooLarge, msgImageTooLarge)
	}

	data, err := readUpload(file, service.MaxImageBytes)
	if err != nil {
		return sendError(c, fiber.StatusBadRequest, "Failed to open file")
	}

	result, err := h.analysisService.AnalyzeImage(c.Context(), session, service.ImageInput{
		Data:        data,
		FileName:    file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
	})
	if err != nil {
		h.logger.Error("Failed to analyze image", zap.String("file_name", file.Filename), zap.Error(err))
		status, body := errorResponse(prefixImage, err, h.analysisService.SetupHelp)
		return c.Status(status).JSON(body)
	}

	return c.JSON(toAnalysisResponse(result))
}

// AnalyzeTable godoc
// @Summary Analyze a table
// @Description Send a truncated CSV sample of an uploaded CSV/Excel file to the provider chain
// @Tags analysis
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Table file (.csv, .xls, .xlsx)"
// @Security Bearer
// @Success 200 {object} dto.AnalysisResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /analyze/table [post]
func (h *AnalysisHandler) AnalyzeTable(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return sendError(c, fiber.StatusUnauthorized, "Session not found or expired")
	}

	in, msg := tableInput(c)
	if msg != "" {
		return sendError(c, fiber.StatusBadRequest, msg)
	}

	result, err := h.analysisService.AnalyzeTable(c.Context(), session, in)
	if err != nil {
		h.logger.Error("Failed to analyze table", zap.String("file_name", in.FileName), zap.Error(err))
		status, body := errorResponse(prefixTable, err, h.analysisService.SetupHelp)
		return c.Status(status).JSON(body)
	}

	return c.JSON(toAnalysisResponse(result))
}

// PreviewTable godoc
// @Summary Preview a table
// @Description Parse an uploaded table and return its first rows and numeric columns
// @Tags tables
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Table file (.csv, .xls, .xlsx)"
// @Success 200 {object} dto.TablePreviewResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /tables/preview [post]
func (h *AnalysisHandler) PreviewTable(c *fiber.Ctx) error {
	in, msg := tableInput(c)
	if msg != "" {
		return sendError(c, fiber.StatusBadRequest, msg)
	}

	preview, err := h.analysisService.PreviewTable(in)
	if err != nil {
		status, body := errorResponse("", err, nil)
		return c.Status(status).JSON(body)
	}

	return c.JSON(dto.TablePreviewResponse{
		Columns:        preview.Columns,
		NumericColumns: nonNil(preview.NumericColumns),
		Rows:           preview.Rows,
		TotalRows:      preview.TotalRows,
	})
}

// PlotTable godoc
// @Summary Quick line plot
// @Description Draw a numeric column over another column (or the row index) as PNG
// @Tags tables
// @Accept multipart/form-data
// @Produce png
// @Param file formData file true "Table file (.csv, .xls, .xlsx)"
// @Param y formData string true "Numeric column for the y axis"
// @Param x formData string false "Column for the x axis, empty or (index) for the row index"
// @Success 200 {file} binary
// @Failure 400 {object} dto.ErrorResponse
// @Router /tables/plot [post]
func (h *AnalysisHandler) PlotTable(c *fiber.Ctx) error {
	in, msg := tableInput(c)
	if msg != "" {
		return sendError(c, fiber.StatusBadRequest, msg)
	}

	png, err := h.analysisService.PlotTable(in, c.FormValue("y"), c.FormValue("x"))
	if err != nil {
		status, body := errorResponse("", err, nil)
		return c.Status(status).JSON(body)
	}

	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

// ListAnalyses godoc
// @Summary List the session's analyses
// @Description History of answered analyses for the current session, newest first
// @Tags analysis
// @Produce json
// @Param limit query int false "Limit" default(20)
// @Param offset query int false "Offset" default(0)
// @Security Bearer
// @Success 200 {array} dto.AnalysisRecordResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /analyses [get]
func (h *AnalysisHandler) ListAnalyses(c *fiber.Ctx) error {
	sessionID := middleware.SessionID(c)
	if sessionID == "" {
		return sendError(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	analyses, err := h.analysisService.ListAnalyses(c.Context(), sessionID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list analyses", zap.Error(err))
		return sendError(c, fiber.StatusInternalServerError, "Failed to list analyses")
	}

	resp := make([]dto.AnalysisRecordResponse, 0, len(analyses))
	for _, a := range analyses {
		resp = append(resp, toRecordResponse(a))
	}
	return c.JSON(resp)
}

// session returns the caller's session, or the defaults for requests
// without a token.
func (h *AnalysisHandler) session(c *fiber.Ctx) (*service.Session, error) {
	id := middleware.SessionID(c)
	if id == "" {
		return h.sessionService.Defaults(), nil
	}
	return h.sessionService.Get(id)
}

// tableInput reads the "file" field. On failure it returns the message to
// send back.
func tableInput(c *fiber.Ctx) (service.TableInput, string) {
	file, err := c.FormFile("file")
	if err != nil {
		return service.TableInput{}, "Table file is required"
	}
	data, err := readUpload(file, 0)
	if err != nil {
		return service.TableInput{}, "Failed to open file"
	}
	return service.TableInput{Data: data, FileName: file.Filename}, ""
}

// readUpload reads the multipart file; limit > 0 caps the bytes read.
func readUpload(file *multipart.FileHeader, limit int64) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	var r io.Reader = src
	if limit > 0 {
		r = io.LimitReader(src, limit+1)
	}
	return io.ReadAll(r)
}

func toAnalysisResponse(r *service.AnalysisResult) dto.AnalysisResponse {
	attempts := make([]dto.AttemptResponse, 0, len(r.Attempts))
	for _, a := range r.Attempts {
		attempts = append(attempts, dto.AttemptResponse{
			Provider:   a.Provider,
			Model:      a.Model,
			Kind:       string(a.Kind),
			Error:      a.Error,
			DurationMS: a.DurationMS,
		})
	}
	return dto.AnalysisResponse{
		ID:        r.ID,
		Insights:  r.Insights,
		Provider:  r.Provider,
		Model:     r.Model,
		ObjectKey: r.ObjectKey,
		Attempts:  attempts,
	}
}

func toRecordResponse(a *models.Analysis) dto.AnalysisRecordResponse {
	return dto.AnalysisRecordResponse{
		ID:        a.ID.String(),
		Kind:      string(a.Kind),
		FileName:  a.FileName,
		FileSize:  a.FileSize,
		Provider:  a.Provider,
		Model:     a.Model,
		Insights:  a.Insights,
		ObjectKey: a.ObjectKey,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
