// Package handler exposes the timesheet service over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"timesheets/internal/apperr"
	"timesheets/internal/cloudinary"
	"timesheets/internal/httpmiddleware"
	"timesheets/internal/store"
	"timesheets/internal/timesheet"
)

// Handler serves the JSON API and the health endpoint.
type Handler struct {
	svc   *timesheet.Service
	cloud *cloudinary.Client // nil if Cloudinary not configured
	db    *store.DB
	redis *store.Redis // nil if redis is disabled
}

// New creates a handler. cloud and redis may be nil.
func New(svc *timesheet.Service, cloud *cloudinary.Client, db *store.DB, redis *store.Redis) *Handler {
	return &Handler{svc: svc, cloud: cloud, db: db, redis: redis}
}

func init() {
	// report json field names in validation errors
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// ---------- Health ----------

// Healthz reports database and, when configured, redis reachability.
func (h *Handler) Healthz(c *gin.Context) {
	ctx := c.Request.Context()
	body := gin.H{"status": "ok"}
	healthy := h.db.Healthy(ctx)
	body["db"] = healthy
	if h.redis != nil {
		redisHealthy := h.redis.Healthy(ctx)
		body["redis"] = redisHealthy
		healthy = healthy && redisHealthy
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}

// ---------- Errors ----------

func respondError(c *gin.Context, err error) {
	ae := apperr.As(err)
	if ae.Code == apperr.Internal {
		log.Printf("request %s: %s %s: %v", httpmiddleware.GetRequestID(c), c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(ae.HTTPStatus(), gin.H{
		"error": gin.H{"code": ae.Code, "message": ae.Message},
	})
}

// bindJSON decodes the body into dst and classifies failures.
func bindJSON(c *gin.Context, dst any) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}

	var (
		verrs   validator.ValidationErrors
		typeErr *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &verrs):
		var missing, invalid []string
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				missing = append(missing, fe.Field())
			} else {
				invalid = append(invalid, fe.Field())
			}
		}
		if len(missing) > 0 {
			return apperr.Newf(apperr.ValidationFailed, "missing required field: %s", strings.Join(missing, ", "))
		}
		return apperr.Newf(apperr.ValidationFailed, "invalid field: %s", strings.Join(invalid, ", "))
	case errors.As(err, &typeErr):
		if typeErr.Field == "" {
			return apperr.Newf(apperr.ValidationFailed, "body must be a JSON object")
		}
		return apperr.Newf(apperr.ValidationFailed, "%s must be a %s", typeErr.Field, typeErr.Type)
	case errors.Is(err, io.EOF):
		return apperr.Newf(apperr.InvalidRequest, "request body is empty")
	default:
		return &apperr.Error{Code: apperr.InvalidRequest, Message: "invalid JSON", Err: err}
	}
}

// pathID parses the :id segment. Anything but an integer cannot name a
// row, so it is reported as not found.
func pathID(c *gin.Context, resource string) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apperr.Newf(apperr.NotFound, "%s not found", resource)
	}
	return id, nil
}
