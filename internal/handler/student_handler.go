package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushq/enrollment-api/internal/service"
	"github.com/campushq/enrollment-api/pkg/response"
)

// StudentHandler exposes student schedule read endpoints.
type StudentHandler struct {
	schedules *service.ScheduleService
}

// NewStudentHandler constructs a student handler.
func NewStudentHandler(schedules *service.ScheduleService) *StudentHandler {
	return &StudentHandler{schedules: schedules}
}

// Schedule godoc
// @Summary Get student schedule
// @Description Current-term timetable for the student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/schedule [get]
func (h *StudentHandler) Schedule(c *gin.Context) {
	entries, err := h.schedules.Schedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Preview godoc
// @Summary Preview enrollment demand
// @Description Dry-run of the demand analysis and credit-bounded selection for the student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/demand [get]
func (h *StudentHandler) Preview(c *gin.Context) {
	preview, err := h.schedules.Preview(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}

// ExportSchedule godoc
// @Summary Export student schedule
// @Description Download the schedule as CSV or PDF
// @Tags Students
// @Produce application/octet-stream
// @Param id path string true "Student ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} byte
// @Router /students/{id}/schedule/export [get]
func (h *StudentHandler) ExportSchedule(c *gin.Context) {
	studentID := c.Param("id")
	format := c.DefaultQuery("format", "csv")

	var (
		data        []byte
		err         error
		contentType string
		ext         string
	)
	switch format {
	case "pdf":
		data, err = h.schedules.ExportPDF(c.Request.Context(), studentID)
		contentType = "application/pdf"
		ext = "pdf"
	default:
		data, err = h.schedules.ExportCSV(c.Request.Context(), studentID)
		contentType = "text/csv"
		ext = "csv"
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("schedule-%s.%s", studentID, ext)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, data)
}
