package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"timesheets/internal/apperr"
	"timesheets/internal/cloudinary"
	"timesheets/internal/httpmiddleware"
	"timesheets/internal/timesheet"
)

// maxAvatarBytes caps avatar request bodies.
const maxAvatarBytes = 10 << 20

func (h *Handler) ListDevelopers(c *gin.Context) {
	devs, err := h.svc.ListDevelopers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if devs == nil {
		devs = []timesheet.Developer{}
	}
	c.JSON(http.StatusOK, devs)
}

func (h *Handler) CreateDeveloper(c *gin.Context) {
	var req timesheet.CreateDeveloperRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	d, err := h.svc.CreateDeveloper(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDeveloper(c *gin.Context) {
	id, err := pathID(c, "developer")
	if err != nil {
		respondError(c, err)
		return
	}
	d, err := h.svc.GetDeveloper(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateDeveloper(c *gin.Context) {
	id, err := pathID(c, "developer")
	if err != nil {
		respondError(c, err)
		return
	}
	var patch timesheet.DeveloperPatch
	if err := bindJSON(c, &patch); err != nil {
		respondError(c, err)
		return
	}
	d, err := h.svc.UpdateDeveloper(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDeveloper(c *gin.Context) {
	id, err := pathID(c, "developer")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.svc.DeleteDeveloper(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Developer deleted successfully"})
}

// UploadAvatar uploads an image to Cloudinary and stores its URL as the
// developer's avatar. Accepts multipart field "file" or JSON {"data": "<data URL>"}.
func (h *Handler) UploadAvatar(c *gin.Context) {
	id, err := pathID(c, "developer")
	if err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := h.svc.GetDeveloper(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	if h.cloud == nil {
		respondError(c, apperr.New(apperr.UploadUnavailable))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAvatarBytes)

	var result *cloudinary.UploadResult
	if strings.Contains(c.ContentType(), "multipart/form-data") {
		file, header, ferr := c.Request.FormFile("file")
		if ferr != nil {
			respondError(c, apperr.Newf(apperr.ValidationFailed, "missing required field: file"))
			return
		}
		defer file.Close()
		result, err = h.cloud.Upload(ctx, file, header.Filename)
	} else {
		var body struct {
			Data *string `json:"data" binding:"required"`
		}
		if err := bindJSON(c, &body); err != nil {
			respondError(c, err)
			return
		}
		result, err = h.cloud.UploadBase64(ctx, *body.Data)
	}

	if err != nil {
		if errors.Is(err, cloudinary.ErrEmptyUpload) {
			respondError(c, apperr.Newf(apperr.ValidationFailed, "image is empty"))
			return
		}
		log.Printf("request %s: cloudinary upload failed: %v", httpmiddleware.GetRequestID(c), err)
		respondError(c, apperr.Wrap(apperr.UploadFailed, err))
		return
	}

	d, err := h.svc.SetAvatar(ctx, id, result.SecureURL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
