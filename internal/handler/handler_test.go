package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"timesheets/internal/cloudinary"
	"timesheets/internal/httpmiddleware"
	"timesheets/internal/store"
	"timesheets/internal/timesheet"
)

type APISuite struct {
	suite.Suite
	db      *store.DB
	svc     *timesheet.Service
	router  *gin.Engine
	metrics *httpmiddleware.Metrics
}

func TestAPISuite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	db, err := store.NewDB("sqlite://" + filepath.Join(s.T().TempDir(), "api.db"))
	s.Require().NoError(err)
	_, err = db.Migrate()
	s.Require().NoError(err)
	s.db = db
	s.svc = timesheet.NewService(timesheet.NewRepository(db))
	s.metrics = httpmiddleware.NewMetrics()
	s.router = s.newRouter(nil, nil, nil)
}

func (s *APISuite) TearDownTest() {
	_ = s.db.Close()
}

func (s *APISuite) newRouter(cloud *cloudinary.Client, redis *store.Redis, limiter httpmiddleware.Limiter) *gin.Engine {
	h := New(s.svc, cloud, s.db, redis)
	return NewRouter(h, RouterOptions{
		CORSOrigins: []string{"*"},
		Limiter:     limiter,
		Metrics:     s.metrics,
	})
}

func (s *APISuite) do(method, path, body string) *httptest.ResponseRecorder {
	return s.doWith(s.router, method, path, body)
}

func (s *APISuite) doWith(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *APISuite) errorCode(w *httptest.ResponseRecorder) string {
	var eb errorBody
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &eb), w.Body.String())
	return eb.Error.Code
}

const annJSON = `{"name":"Ann","email":"ann@x.com","position":"Eng","department":"R&D"}`

func (s *APISuite) createAnn() timesheet.Developer {
	w := s.do(http.MethodPost, "/api/developers", annJSON)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var d timesheet.Developer
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &d))
	return d
}

func (s *APISuite) TestConcreteScenario() {
	d := s.createAnn()
	s.Equal(int64(1), d.ID)
	s.Equal("", d.AvatarURL)

	w := s.do(http.MethodPost, "/api/timesheets", `{"developer_id":1,"date":"2024-01-05",
		"project_name":"Alpha","task_description":"API","hours_worked":3.5,"task_type":"Development"}`)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var ts timesheet.Timesheet
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &ts))
	s.Equal("Completed", ts.Status)
	s.Equal("Ann", ts.DeveloperName)
	s.Equal("2024-01-05", ts.Date.String())
	s.Equal("", ts.Notes)

	w = s.do(http.MethodGet, "/api/statistics", "")
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"total_developers":1,"total_hours":3.5,"total_entries":1,
		"hours_by_type":{"Development":3.5},"hours_by_project":{"Alpha":3.5}}`, w.Body.String())
}

func (s *APISuite) TestEmptyCollections() {
	w := s.do(http.MethodGet, "/api/developers", "")
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`[]`, w.Body.String())

	w = s.do(http.MethodGet, "/api/timesheets", "")
	s.JSONEq(`[]`, w.Body.String())

	w = s.do(http.MethodGet, "/api/statistics", "")
	s.JSONEq(`{"total_developers":0,"total_hours":0,"total_entries":0,"hours_by_type":{},"hours_by_project":{}}`, w.Body.String())
}

func (s *APISuite) TestCreateDeveloperErrors() {
	w := s.do(http.MethodPost, "/api/developers", `{"name":"Ann"`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("INVALID_REQUEST", s.errorCode(w))

	w = s.do(http.MethodPost, "/api/developers", `{"name":"Ann","email":null}`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("VALIDATION_FAILED", s.errorCode(w))
	s.Contains(w.Body.String(), "email")
	s.Contains(w.Body.String(), "department")

	s.createAnn()
	w = s.do(http.MethodPost, "/api/developers", annJSON)
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("EMAIL_EXISTS", s.errorCode(w))

	w = s.do(http.MethodGet, "/api/developers", "")
	var devs []timesheet.Developer
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &devs))
	s.Len(devs, 1)
}

func (s *APISuite) TestDeveloperLifecycle() {
	d := s.createAnn()

	w := s.do(http.MethodPut, "/api/developers/1", `{"position":"Lead","avatar_url":"https://img/a.png"}`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var got timesheet.Developer
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &got))
	s.Equal("Lead", got.Position)
	s.Equal("https://img/a.png", got.AvatarURL)
	s.Equal(d.Email, got.Email)
	s.True(d.CreatedAt.Equal(got.CreatedAt))

	w = s.do(http.MethodPut, "/api/developers/1", `{"name":null}`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("VALIDATION_FAILED", s.errorCode(w))

	w = s.do(http.MethodPut, "/api/developers/99", `{"name":"Z"}`)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/developers/abc", "")
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("NOT_FOUND", s.errorCode(w))

	w = s.do(http.MethodDelete, "/api/developers/1", "")
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"message":"Developer deleted successfully"}`, w.Body.String())

	w = s.do(http.MethodDelete, "/api/developers/1", "")
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APISuite) TestTimesheetLifecycle() {
	s.createAnn()

	w := s.do(http.MethodPost, "/api/timesheets", `{"developer_id":"1","date":"2024-01-05",
		"project_name":"Alpha","task_description":"API","hours_worked":"7.5","task_type":"Development",
		"status":"In Progress","notes":"n"}`)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPut, "/api/timesheets/1", `{"notes":"x"}`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var ts timesheet.Timesheet
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &ts))
	s.Equal("x", ts.Notes)
	s.Equal(7.5, ts.HoursWorked)
	s.Equal("In Progress", ts.Status)
	s.Equal("Alpha", ts.ProjectName)

	w = s.do(http.MethodPut, "/api/timesheets/1", `{"date":"05/01/2024"}`)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/timesheets/1", "")
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodDelete, "/api/timesheets/1", "")
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"message":"Timesheet entry deleted successfully"}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/timesheets/1", "")
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APISuite) TestCreateTimesheetErrors() {
	s.createAnn()
	base := `"date":"2024-01-05","project_name":"Alpha","task_description":"API","task_type":"Development"`

	cases := []struct {
		name string
		body string
		code string
	}{
		{"missing hours", `{"developer_id":1,` + base + `}`, "VALIDATION_FAILED"},
		{"non numeric hours", `{"developer_id":1,"hours_worked":"lots",` + base + `}`, "VALIDATION_FAILED"},
		{"too many hours", `{"developer_id":1,"hours_worked":25,` + base + `}`, "VALIDATION_FAILED"},
		{"bad date", `{"developer_id":1,"hours_worked":1,"date":"2024-13-01","project_name":"A","task_description":"d","task_type":"t"}`, "VALIDATION_FAILED"},
		{"unknown developer", `{"developer_id":42,"hours_worked":1,` + base + `}`, "INVALID_REFERENCE"},
		{"malformed", `{"developer_id":`, "INVALID_REQUEST"},
	}
	for _, tc := range cases {
		w := s.do(http.MethodPost, "/api/timesheets", tc.body)
		s.Equal(http.StatusBadRequest, w.Code, tc.name)
		s.Equal(tc.code, s.errorCode(w), tc.name)
	}

	w := s.do(http.MethodGet, "/api/timesheets", "")
	s.JSONEq(`[]`, w.Body.String())
}

func (s *APISuite) TestListTimesheetsFilter() {
	ann := s.createAnn()
	w := s.do(http.MethodPost, "/api/developers", `{"name":"Bob","email":"bob@x.com","position":"Eng","department":"Ops"}`)
	s.Require().Equal(http.StatusCreated, w.Code)

	for _, body := range []string{
		`{"developer_id":1,"date":"2024-01-01","project_name":"A","task_description":"d","hours_worked":1,"task_type":"t"}`,
		`{"developer_id":2,"date":"2024-01-03","project_name":"A","task_description":"d","hours_worked":1,"task_type":"t"}`,
		`{"developer_id":1,"date":"2024-01-02","project_name":"A","task_description":"d","hours_worked":1,"task_type":"t"}`,
	} {
		s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/api/timesheets", body).Code)
	}

	w = s.do(http.MethodGet, "/api/timesheets?developer_id=1", "")
	s.Require().Equal(http.StatusOK, w.Code)
	var entries []timesheet.Timesheet
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &entries))
	s.Require().Len(entries, 2)
	s.Equal("2024-01-02", entries[0].Date.String())
	s.Equal("2024-01-01", entries[1].Date.String())
	for _, e := range entries {
		s.Equal(ann.ID, e.DeveloperID)
	}

	w = s.do(http.MethodGet, "/api/timesheets?developer_id=one", "")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("VALIDATION_FAILED", s.errorCode(w))

	s.Equal(http.StatusOK, s.do(http.MethodDelete, "/api/developers/1", "").Code)
	w = s.do(http.MethodGet, "/api/timesheets?developer_id=1", "")
	s.JSONEq(`[]`, w.Body.String())
}

func (s *APISuite) TestAvatarUnavailable() {
	s.createAnn()
	w := s.do(http.MethodPost, "/api/developers/1/avatar", `{"data":"data:image/png;base64,AAAA"}`)
	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Equal("UPLOAD_UNAVAILABLE", s.errorCode(w))

	w = s.do(http.MethodPost, "/api/developers/7/avatar", `{"data":"data:image/png;base64,AAAA"}`)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APISuite) newCloud(status int, body string) *cloudinary.Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	s.T().Cleanup(srv.Close)
	c := cloudinary.New("demo", "key", "secret", "avatars")
	c.BaseURL = srv.URL
	c.HTTP = srv.Client()
	return c
}

func (s *APISuite) TestAvatarUpload() {
	s.createAnn()
	r := s.newRouter(s.newCloud(http.StatusOK, `{"secure_url":"https://res.example/ann.png"}`), nil, nil)

	w := s.doWith(r, http.MethodPost, "/api/developers/1/avatar", `{"data":"data:image/png;base64,AAAA"}`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var d timesheet.Developer
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &d))
	s.Equal("https://res.example/ann.png", d.AvatarURL)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "ann.png")
	s.Require().NoError(err)
	_, _ = part.Write([]byte("PNGDATA"))
	s.Require().NoError(mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/developers/1/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	s.Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.doWith(r, http.MethodPost, "/api/developers/1/avatar", `{}`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("VALIDATION_FAILED", s.errorCode(w))
}

func (s *APISuite) TestAvatarUploadFailed() {
	s.createAnn()
	r := s.newRouter(s.newCloud(http.StatusBadRequest, `{"error":{"message":"Invalid image file"}}`), nil, nil)

	w := s.doWith(r, http.MethodPost, "/api/developers/1/avatar", `{"data":"junk"}`)
	s.Equal(http.StatusBadGateway, w.Code)
	s.Equal("UPLOAD_FAILED", s.errorCode(w))

	got, err := s.svc.GetDeveloper(context.Background(), 1)
	s.Require().NoError(err)
	s.Equal("", got.AvatarURL)
}

func (s *APISuite) TestHealthz() {
	w := s.do(http.MethodGet, "/healthz", "")
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"status":"ok","db":true}`, w.Body.String())

	mr := miniredis.RunT(s.T())
	rdb := store.NewRedis(mr.Addr())
	s.T().Cleanup(func() { _ = rdb.Close() })
	r := s.newRouter(nil, rdb, nil)

	w = s.doWith(r, http.MethodGet, "/healthz", "")
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"status":"ok","db":true,"redis":true}`, w.Body.String())

	mr.Close()
	w = s.doWith(r, http.MethodGet, "/healthz", "")
	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.JSONEq(`{"status":"degraded","db":true,"redis":false}`, w.Body.String())
}

func (s *APISuite) TestRateLimit() {
	r := s.newRouter(nil, nil, httpmiddleware.NewSimpleTokenBucket(1, 1))

	s.Equal(http.StatusOK, s.doWith(r, http.MethodGet, "/api/developers", "").Code)
	w := s.doWith(r, http.MethodGet, "/api/developers", "")
	s.Equal(http.StatusTooManyRequests, w.Code)
	s.Equal("RATE_LIMITED", s.errorCode(w))

	s.Equal(http.StatusOK, s.doWith(r, http.MethodGet, "/healthz", "").Code, "health is not limited")
}

func (s *APISuite) TestPagesAndAmbient() {
	for _, path := range []string{"/", "/admin"} {
		w := s.do(http.MethodGet, path, "")
		s.Equal(http.StatusOK, w.Code, path)
		s.Contains(w.Header().Get("Content-Type"), "text/html")
		s.Contains(w.Body.String(), "<html")
	}

	w := s.do(http.MethodGet, "/api/developers", "")
	s.NotEmpty(w.Header().Get(httpmiddleware.RequestIDHeader))
	s.Equal("nosniff", w.Header().Get("X-Content-Type-Options"))

	w = s.do(http.MethodGet, "/metrics", "")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `route="/api/developers"`)
}
