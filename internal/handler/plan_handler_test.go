package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/planboard/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const beachTripMarkdown = "# Beach Trip\n" +
	"## Day 1 - Setup\n" +
	"- [ ] Build a sandcastle (30 XP)\n" +
	"- [ ] Collect shells\n" +
	"## Day 2 - Waves\n" +
	"- [ ] Try bodyboarding (40 XP)\n"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func setupTestDB(t *testing.T) (*API, func()) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(
		&db.User{},
		&db.Device{},
		&db.Plan{},
		&db.PlanDay{},
		&db.Subtask{},
		&db.SubtaskSubmission{},
		&db.Approval{},
		&db.XPEvent{},
		&db.ActivityLog{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return NewAPI(db.DB, "web/static/uploads", "/static/uploads"), func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

// newTestEngine 搭一个与生产一致的最小引擎：会话 + 设备 cookie + 路由
func newTestEngine(api *API) *gin.Engine {
	r := gin.New()
	store := cookie.NewStore([]byte("test-secret"))
	r.Use(sessions.Sessions("planboard_session", store))
	r.Use(api.DeviceCookie())

	r.GET("/", api.GetBoard)
	r.GET("/plans/:id", api.GetPlan)
	r.GET("/plans/:id/progress", api.GetPlanProgress)
	r.POST("/subtasks/:id/submit", api.SubmitEvidence)
	r.GET("/review", api.GetReviewQueue)
	r.POST("/review/:id/approve", api.ApproveSubtask)
	r.POST("/review/:id/deny", api.DenySubtask)

	admin := r.Group("/admin")
	admin.POST("/login", api.Login)
	admin.GET("/logout", api.Logout)
	auth := admin.Group("")
	auth.Use(AuthRequired())
	auth.POST("/import", api.ImportPlan)
	auth.GET("/users", api.ListUsers)
	auth.GET("/devices", api.ListDevices)
	auth.PUT("/devices/:id", api.UpdateDevice)
	auth.GET("/activity", api.ListActivity)

	return r
}

func seedUser(t *testing.T, name string) *db.User {
	t.Helper()
	user := db.User{DisplayName: name, IsActive: true}
	if err := db.DB.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return &user
}

func seedDevice(t *testing.T, linkedUserID *uint) *db.Device {
	t.Helper()
	device := db.Device{ID: uuid.New().String(), LinkedUserID: linkedUserID}
	if err := db.DB.Create(&device).Error; err != nil {
		t.Fatalf("failed to seed device: %v", err)
	}
	return &device
}

func seedPlan(t *testing.T, api *API, assigneeID uint) *db.Plan {
	t.Helper()
	plan, err := api.plans.ImportFromMarkdown(beachTripMarkdown, assigneeID, nil)
	if err != nil {
		t.Fatalf("failed to import fixture plan: %v", err)
	}
	return plan
}

func doForm(r *gin.Engine, method, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestGetPlan(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	assignee := seedUser(t, "Charlie")
	plan := seedPlan(t, api, assignee.ID)
	r := newTestEngine(api)

	w := doForm(r, http.MethodGet, "/plans/"+strconv.Itoa(int(plan.ID)), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	payload, ok := body["plan"].(map[string]any)
	if !ok {
		t.Fatal("expected plan object in response")
	}
	if payload["title"] != "Beach Trip" {
		t.Fatalf("unexpected title: %v", payload["title"])
	}
	if payload["assignee_name"] != "Charlie" {
		t.Fatalf("unexpected assignee: %v", payload["assignee_name"])
	}
	if payload["total_xp"].(float64) != 80 {
		t.Fatalf("unexpected total xp: %v", payload["total_xp"])
	}
	// 任务 80 分 + 两个日奖励 + 计划奖励
	if payload["blueprint_xp"].(float64) != 170 {
		t.Fatalf("unexpected blueprint xp: %v", payload["blueprint_xp"])
	}

	days, ok := payload["days"].([]any)
	if !ok || len(days) != 2 {
		t.Fatalf("expected 2 days in payload, got %v", payload["days"])
	}
	firstDay := days[0].(map[string]any)
	if firstDay["locked"].(bool) {
		t.Fatal("day 1 should be unlocked")
	}
	secondDay := days[1].(map[string]any)
	if !secondDay["locked"].(bool) {
		t.Fatal("day 2 should start locked")
	}
}

func TestGetPlanNotFound(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	r := newTestEngine(api)

	w := doForm(r, http.MethodGet, "/plans/999", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}

	w = doForm(r, http.MethodGet, "/plans/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for bad id, got %d", w.Code)
	}
}

func TestGetPlanProgress(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	assignee := seedUser(t, "Charlie")
	plan := seedPlan(t, api, assignee.ID)
	r := newTestEngine(api)

	w := doForm(r, http.MethodGet, "/plans/"+strconv.Itoa(int(plan.ID))+"/progress", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	body := decodeBody(t, w)
	progress, ok := body["progress"].(map[string]any)
	if !ok {
		t.Fatal("expected progress object in response")
	}
	if progress["total_subtasks"].(float64) != 3 {
		t.Fatalf("unexpected total subtasks: %v", progress["total_subtasks"])
	}
	if progress["percent"].(float64) != 0 {
		t.Fatalf("unexpected percent: %v", progress["percent"])
	}
}

func TestSubmitEvidence(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	assignee := seedUser(t, "Charlie")
	plan := seedPlan(t, api, assignee.ID)
	subtaskID := plan.Days[0].Subtasks[0].ID
	r := newTestEngine(api)

	form := url.Values{}
	form.Set("comment", "done, checked twice")
	form.Set("user_id", strconv.Itoa(int(assignee.ID)))

	w := doForm(r, http.MethodPost, "/subtasks/"+strconv.Itoa(int(subtaskID))+"/submit", form)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	// 首次访问应下发设备 cookie
	deviceCookie := ""
	for _, c := range w.Result().Cookies() {
		if c.Name == "pb_device_id" {
			deviceCookie = c.Value
		}
	}
	if deviceCookie == "" {
		t.Fatal("expected a device cookie to be issued")
	}

	body := decodeBody(t, w)
	submission, ok := body["submission"].(map[string]any)
	if !ok {
		t.Fatal("expected submission object in response")
	}
	if submission["comment"] != "done, checked twice" {
		t.Fatalf("unexpected comment: %v", submission["comment"])
	}

	var updated db.Subtask
	if err := db.DB.First(&updated, subtaskID).Error; err != nil {
		t.Fatalf("failed to load subtask: %v", err)
	}
	if updated.Status != db.SubtaskStatusSubmitted {
		t.Fatalf("expected submitted status, got %s", updated.Status)
	}

	var stored db.SubtaskSubmission
	if err := db.DB.Where("subtask_id = ?", subtaskID).First(&stored).Error; err != nil {
		t.Fatalf("failed to load submission: %v", err)
	}
	if stored.SubmittedByDeviceID != deviceCookie {
		t.Fatalf("submission should record the cookie device, got %s", stored.SubmittedByDeviceID)
	}
	if stored.SubmittedByUserID == nil || *stored.SubmittedByUserID != assignee.ID {
		t.Fatal("submission should record the selected user")
	}
}

func TestSubmitEvidenceRejectsUnknownUser(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	assignee := seedUser(t, "Charlie")
	plan := seedPlan(t, api, assignee.ID)
	subtaskID := plan.Days[0].Subtasks[0].ID
	r := newTestEngine(api)

	form := url.Values{}
	form.Set("user_id", "999")

	w := doForm(r, http.MethodPost, "/subtasks/"+strconv.Itoa(int(subtaskID))+"/submit", form)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}

	body := decodeBody(t, w)
	if body["error"] != "select a valid family member or leave the field blank" {
		t.Fatalf("unexpected error message: %v", body["error"])
	}
}

func TestSubmitEvidenceRendersCommentMarkdown(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	assignee := seedUser(t, "Charlie")
	plan := seedPlan(t, api, assignee.ID)
	subtaskID := plan.Days[0].Subtasks[0].ID
	r := newTestEngine(api)

	form := url.Values{}
	form.Set("comment", "**really** done")

	w := doForm(r, http.MethodPost, "/subtasks/"+strconv.Itoa(int(subtaskID))+"/submit", form)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", w.Code)
	}

	body := decodeBody(t, w)
	submission := body["submission"].(map[string]any)
	html, _ := submission["comment_html"].(string)
	if !strings.Contains(html, "<strong>really</strong>") {
		t.Fatalf("comment markdown not rendered: %q", html)
	}
}
