package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"timesheets/internal/apperr"
	"timesheets/internal/timesheet"
)

// ListTimesheets returns entries newest first; ?developer_id narrows the list.
func (h *Handler) ListTimesheets(c *gin.Context) {
	var filter *int64
	if raw := c.Query("developer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(c, apperr.Newf(apperr.ValidationFailed, "developer_id must be an integer"))
			return
		}
		filter = &id
	}

	entries, err := h.svc.ListTimesheets(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if entries == nil {
		entries = []timesheet.Timesheet{}
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) CreateTimesheet(c *gin.Context) {
	var req timesheet.CreateTimesheetRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	ts, err := h.svc.CreateTimesheet(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ts)
}

func (h *Handler) GetTimesheet(c *gin.Context) {
	id, err := pathID(c, "timesheet")
	if err != nil {
		respondError(c, err)
		return
	}
	ts, err := h.svc.GetTimesheet(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

func (h *Handler) UpdateTimesheet(c *gin.Context) {
	id, err := pathID(c, "timesheet")
	if err != nil {
		respondError(c, err)
		return
	}
	var patch timesheet.TimesheetPatch
	if err := bindJSON(c, &patch); err != nil {
		respondError(c, err)
		return
	}
	ts, err := h.svc.UpdateTimesheet(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

func (h *Handler) DeleteTimesheet(c *gin.Context) {
	id, err := pathID(c, "timesheet")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.svc.DeleteTimesheet(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Timesheet entry deleted successfully"})
}

func (h *Handler) Statistics(c *gin.Context) {
	st, err := h.svc.Statistics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
