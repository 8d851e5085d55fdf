package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"parking-service/internal/domain/parking"
	"parking-service/internal/service"
	"parking-service/internal/utils"
)

const (
	dateLayout = "2006-01-02"
	xlsxType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type ParkingService interface {
	Register(ctx context.Context, plate, street string) (*parking.Session, error)
	Deregister(ctx context.Context, plate string) (*parking.FeeResult, error)
	ActiveSession(ctx context.Context, plate string) (*parking.Session, error)
	UploadObservations(ctx context.Context, inputs []service.ObservationInput) ([]parking.Observation, error)
	ViolationReport(ctx context.Context, day time.Time) ([]parking.ReportEntry, error)
	ViolationReportXLSX(ctx context.Context, day time.Time) ([]byte, error)
	ListRates(ctx context.Context) (parking.RateTable, error)
	UpsertRate(ctx context.Context, street string, rate decimal.Decimal) error
	Today() time.Time
	Location() *time.Location
}

type Handler struct {
	parking ParkingService
	log     zerolog.Logger
}

func NewHandler(parkingService ParkingService, log zerolog.Logger) *Handler {
	return &Handler{
		parking: parkingService,
		log:     log,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.POST("/register", h.register)
		api.POST("/unregister", h.unregister)
		api.POST("/loadParkingRecordList", h.loadParkingRecordList)
		api.GET("/notRegisteredVehicleReport", h.violationReport)
		api.GET("/notRegisteredVehicleReport/export", h.exportViolationReport)
		api.GET("/sessions/:plate", h.activeSession)
		api.GET("/rates", h.listRates)
		api.PUT("/rates/:street", h.upsertRate)
	}
}

type registerRequest struct {
	LicenceNumber string `json:"licenceNumber" binding:"required,min=2,max=10"`
	StreetName    string `json:"streetName" binding:"required"`
}

type unregisterRequest struct {
	LicenceNumber string `json:"licenceNumber" binding:"required,min=2,max=10"`
}

type observationRequest struct {
	LicenceNumber string                 `json:"licenceNumber" binding:"required,min=2,max=10"`
	StreetName    string                 `json:"streetName" binding:"required"`
	ObservedAt    *time.Time             `json:"observedAt"`
	Metadata      map[string]interface{} `json:"metadata"`
}

type rateRequest struct {
	RatePerMinute *decimal.Decimal `json:"ratePerMinute" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bindingErrorResponse(err))
		return
	}

	session, err := h.parking.Register(c.Request.Context(), req.LicenceNumber, req.StreetName)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

func (h *Handler) unregister(c *gin.Context) {
	var req unregisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bindingErrorResponse(err))
		return
	}

	fee, err := h.parking.Deregister(c.Request.Context(), req.LicenceNumber)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, fee)
}

func (h *Handler) loadParkingRecordList(c *gin.Context) {
	var req []observationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bindingErrorResponse(err))
		return
	}

	inputs := make([]service.ObservationInput, 0, len(req))
	for _, item := range req {
		in := service.ObservationInput{
			LicencePlate: item.LicenceNumber,
			StreetName:   item.StreetName,
			Metadata:     item.Metadata,
		}
		if item.ObservedAt != nil {
			in.ObservedAt = *item.ObservedAt
		}
		inputs = append(inputs, in)
	}

	stored, err := h.parking.UploadObservations(c.Request.Context(), inputs)
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.log.Info().Int("count", len(stored)).Msg("monitoring records loaded")
	c.JSON(http.StatusCreated, stored)
}

func (h *Handler) violationReport(c *gin.Context) {
	day, err := h.reportDay(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	entries, err := h.parking.ViolationReport(c.Request.Context(), day)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (h *Handler) exportViolationReport(c *gin.Context) {
	day, err := h.reportDay(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	data, err := h.parking.ViolationReportXLSX(c.Request.Context(), day)
	if err != nil {
		h.handleError(c, err)
		return
	}

	filename := fmt.Sprintf("violations-%s.xlsx", day.Format(dateLayout))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxType, data)
}

func (h *Handler) activeSession(c *gin.Context) {
	session, err := h.parking.ActiveSession(c.Request.Context(), c.Param("plate"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(session))
}

func (h *Handler) listRates(c *gin.Context) {
	rates, err := h.parking.ListRates(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(rates))
}

func (h *Handler) upsertRate(c *gin.Context) {
	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bindingErrorResponse(err))
		return
	}

	street := utils.NormalizeStreet(c.Param("street"))
	if err := h.parking.UpsertRate(c.Request.Context(), street, *req.RatePerMinute); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{
		"streetName":    street,
		"ratePerMinute": req.RatePerMinute,
	}))
}

// reportDay reads ?date=YYYY-MM-DD in the service location, defaulting to today.
func (h *Handler) reportDay(c *gin.Context) (time.Time, error) {
	raw := c.Query("date")
	if raw == "" {
		return h.parking.Today(), nil
	}
	day, err := time.ParseInLocation(dateLayout, raw, h.parking.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be formatted as YYYY-MM-DD", service.ErrInvalidInput)
	}
	return day, nil
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, parking.ErrRegistrationNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, parking.ErrAlreadyRegistered):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, parking.ErrRateNotFound):
		c.JSON(http.StatusInternalServerError, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
