package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushq/enrollment-api/internal/service"
	appErrors "github.com/campushq/enrollment-api/pkg/errors"
	"github.com/campushq/enrollment-api/pkg/response"
)

// EnrollRequest is the single-enrollment payload.
type EnrollRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	CourseID  string `json:"course_id" binding:"required"`
}

// DropRequest identifies the assignment to drop by its natural key.
type DropRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	SectionID string `json:"section_id" binding:"required"`
}

// EnrollmentHandler exposes enrollment write endpoints.
type EnrollmentHandler struct {
	engine      *service.EnrollmentEngine
	eligibility *service.EligibilityService
}

// NewEnrollmentHandler constructs an enrollment handler.
func NewEnrollmentHandler(engine *service.EnrollmentEngine, eligibility *service.EligibilityService) *EnrollmentHandler {
	return &EnrollmentHandler{engine: engine, eligibility: eligibility}
}

// Enroll godoc
// @Summary Enroll a student into a course
// @Description Runs eligibility, conflict, and capacity checks and allocates a section in the current term
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	section, err := h.engine.EnrollSingle(c.Request.Context(), req.StudentID, req.CourseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, section)
}

// Drop godoc
// @Summary Drop an enrollment
// @Description Marks the assignment dropped and resets course progress
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body DropRequest true "Drop payload"
// @Success 204
// @Router /enrollments [delete]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	var req DropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.engine.Drop(c.Request.Context(), req.StudentID, req.SectionID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Eligibility godoc
// @Summary Check course eligibility
// @Description Reports whether the student may enroll in the course and why not
// @Tags Enrollments
// @Produce json
// @Param id path string true "Student ID"
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/eligibility/{courseId} [get]
func (h *EnrollmentHandler) Eligibility(c *gin.Context) {
	result, err := h.eligibility.CanEnroll(c.Request.Context(), c.Param("id"), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
