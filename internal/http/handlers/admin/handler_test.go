package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/melodiemoment/api/internal/config"
	"github.com/melodiemoment/api/internal/constants"
	handlershared "github.com/melodiemoment/api/internal/http/handlers/shared"
	"github.com/melodiemoment/api/internal/models"
	"github.com/melodiemoment/api/internal/provider"
	"github.com/melodiemoment/api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const testAdminPassword = "liedermacher-2024"

func setupAdminHandlerTest(t *testing.T) (*Handler, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if err := handlershared.RegisterValidators(); err != nil {
		t.Fatalf("register validators failed: %v", err)
	}

	dsn := fmt.Sprintf("file:admin_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{NowFunc: models.Now})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	hash, err := service.HashPassword(testAdminPassword)
	if err != nil {
		t.Fatalf("hash password failed: %v", err)
	}
	cfg := &config.Config{
		Admin: config.AdminConfig{
			PasswordHash:    hash,
			SessionSecret:   "admin-handler-test-secret-0123456789",
			SessionTTLHours: 12,
		},
		Storage: config.StorageConfig{Provider: "local", LocalDir: t.TempDir(), PublicBaseURL: "http://localhost/uploads"},
		Site:    config.SiteConfig{BaseURL: "https://melodiemoment.de", DeliveryPath: "/song"},
	}
	container, err := provider.NewContainer(cfg, db)
	if err != nil {
		t.Fatalf("build container failed: %v", err)
	}

	h := New(container)
	r := gin.New()
	api := r.Group("/api/admin")
	api.POST("/login", h.Login)
	api.POST("/logout", h.Logout)
	api.GET("/orders", h.ListOrders)
	api.POST("/orders/prioritize", h.PrioritizeOrders)
	api.POST("/orders/batch", h.BatchOrders)
	api.GET("/orders/:orderNumber", h.GetOrder)
	api.PATCH("/orders/:orderNumber", h.UpdateOrder)
	api.GET("/orders/:orderNumber/deliverables", h.ListDeliverables)
	api.POST("/orders/:orderNumber/generate/prompt", h.GenerateSongPrompt)
	api.POST("/deliver", h.DeliverOrder)
	api.POST("/upload", h.UploadDeliverable)
	api.DELETE("/deliverables/:id", h.DeleteDeliverable)
	api.GET("/campaigns", h.ListCampaigns)
	api.POST("/campaigns", h.CreateCampaign)
	api.POST("/campaigns/:id/enroll", h.EnrollOrder)
	return h, r
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createAdminOrder(t *testing.T, h *Handler, number string, mutate func(*models.Order)) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNumber:    number,
		PackageType:    constants.PackagePlus,
		SelectedBundle: constants.BundleNone,
		BasePrice:      constants.PricePlus,
		TotalPrice:     constants.PricePlus,
		RecipientName:  "Oma Hilde",
		Occasion:       constants.OccasionGeburtstag,
		Story:          "Oma Hilde wird neunzig und hat uns allen das Backen und das Singen beigebracht.",
		Mood:           4,
		CustomerName:   "Miriam",
		CustomerEmail:  "miriam@example.com",
		Status:         constants.OrderStatusPaid,
	}
	if mutate != nil {
		mutate(order)
	}
	if err := h.OrderRepo.Create(order); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func uploadFile(t *testing.T, r *gin.Engine, orderID, fileType, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("orderId", orderID)
	_ = mw.WriteField("type", fileType)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file failed: %v", err)
	}
	_, _ = part.Write(content)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/admin/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginSetsSessionCookie(t *testing.T) {
	h, r := setupAdminHandlerTest(t)

	w := doJSON(r, http.MethodPost, "/api/admin/login", map[string]string{"password": "falsch"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status want 401 got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != `{"error":"Nicht autorisiert. Bitte anmelden."}` {
		t.Fatalf("unexpected 401 body: %s", w.Body.String())
	}

	w = doJSON(r, http.MethodPost, "/api/admin/login", map[string]string{"password": testAdminPassword})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status want 200 got %d: %s", w.Code, w.Body.String())
	}
	var session *http.Cookie
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == handlershared.AdminSessionCookie {
			session = cookie
		}
	}
	if session == nil || !session.HttpOnly {
		t.Fatalf("session cookie missing or not httpOnly: %+v", session)
	}
	if err := h.AuthService.VerifyToken(session.Value); err != nil {
		t.Fatalf("issued token should verify: %v", err)
	}

	w = doJSON(r, http.MethodPost, "/api/admin/logout", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Header().Get("Set-Cookie"), "Max-Age=0") {
		t.Fatalf("logout should clear cookie, got %d %q", w.Code, w.Header().Get("Set-Cookie"))
	}
}

func TestListAndGetOrders(t *testing.T) {
	h, r := setupAdminHandlerTest(t)
	createAdminOrder(t, h, "MM-TEST-A1", nil)
	createAdminOrder(t, h, "MM-TEST-A2", func(o *models.Order) { o.Status = constants.OrderStatusPending })

	w := doJSON(r, http.MethodGet, "/api/admin/orders?status=paid&page_size=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status want 200 got %d: %s", w.Code, w.Body.String())
	}
	var page struct {
		Data       []models.Order `json:"data"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("unmarshal list failed: %v", err)
	}
	if page.Pagination.Total != 1 || len(page.Data) != 1 || page.Data[0].OrderNumber != "MM-TEST-A1" {
		t.Fatalf("unexpected page: %+v", page)
	}

	w = doJSON(r, http.MethodGet, "/api/admin/orders?status=shipped", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown status filter: want 400 got %d", w.Code)
	}
	w = doJSON(r, http.MethodGet, "/api/admin/orders?created_from=gestern", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("broken date filter: want 400 got %d", w.Code)
	}

	w = doJSON(r, http.MethodGet, "/api/admin/orders/MM-TEST-A1", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"orderNumber":"MM-TEST-A1"`) {
		t.Fatalf("detail: unexpected %d %s", w.Code, w.Body.String())
	}
	w = doJSON(r, http.MethodGet, "/api/admin/orders/MM-NOPE", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing detail: want 404 got %d", w.Code)
	}
}

func TestUpdateOrderOverridesStatus(t *testing.T) {
	h, r := setupAdminHandlerTest(t)
	createAdminOrder(t, h, "MM-TEST-A3", nil)

	w := doJSON(r, http.MethodPatch, "/api/admin/orders/MM-TEST-A3", map[string]string{"status": "shipped"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid status: want 400 got %d", w.Code)
	}
	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Error != "Ungültiger Status" || body.Details == "" {
		t.Fatalf("admin errors should carry details: %+v", body)
	}

	w = doJSON(r, http.MethodPatch, "/api/admin/orders/MM-TEST-A3", map[string]string{"status": "quality_review"})
	if w.Code != http.StatusOK {
		t.Fatalf("override: want 200 got %d: %s", w.Code, w.Body.String())
	}
	stored, err := h.OrderRepo.GetByOrderNumber("MM-TEST-A3")
	if err != nil || stored == nil || stored.Status != constants.OrderStatusQualityReview {
		t.Fatalf("status not stored: %+v %v", stored, err)
	}

	w = doJSON(r, http.MethodPatch, "/api/admin/orders/MM-NOPE", map[string]string{"status": "paid"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing order: want 404 got %d", w.Code)
	}
}

func TestUploadDeliverAndDelete(t *testing.T) {
	h, r := setupAdminHandlerTest(t)
	order := createAdminOrder(t, h, "MM-TEST-A4", nil)

	w := doJSON(r, http.MethodPost, "/api/admin/deliver", map[string]string{"orderNumber": "MM-TEST-A4"})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "Keine Dateien") {
		t.Fatalf("deliver without files: unexpected %d %s", w.Code, w.Body.String())
	}

	var empty bytes.Buffer
	mw := multipart.NewWriter(&empty)
	_ = mw.WriteField("orderId", order.ID)
	_ = mw.WriteField("type", "mp3")
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/upload", &empty)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "Keine Datei hochgeladen") {
		t.Fatalf("upload without file: unexpected %d %s", w.Code, w.Body.String())
	}

	w = uploadFile(t, r, order.ID, "zip", "song.zip", []byte("PK"))
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "Dateityp nicht erlaubt") {
		t.Fatalf("zip upload: unexpected %d %s", w.Code, w.Body.String())
	}
	w = uploadFile(t, r, order.ID, "pdf", "lyrics.pdf", []byte("%PDF-1.4"))
	if w.Code != http.StatusCreated {
		t.Fatalf("pdf upload: want 201 got %d: %s", w.Code, w.Body.String())
	}
	var pdf models.Deliverable
	if err := json.Unmarshal(w.Body.Bytes(), &pdf); err != nil || pdf.ID == "" {
		t.Fatalf("unmarshal deliverable failed: %v %s", err, w.Body.String())
	}

	w = doJSON(r, http.MethodPost, "/api/admin/deliver", map[string]string{"orderNumber": "MM-TEST-A4"})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "Keine MP3-Datei") {
		t.Fatalf("deliver without mp3: unexpected %d %s", w.Code, w.Body.String())
	}

	w = uploadFile(t, r, order.ID, "mp3", "song.mp3", []byte("ID3"))
	if w.Code != http.StatusCreated {
		t.Fatalf("mp3 upload: want 201 got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodGet, "/api/admin/orders/MM-TEST-A4/deliverables", nil)
	var listed []models.Deliverable
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil || len(listed) != 2 {
		t.Fatalf("expected 2 deliverables, got %d %v", len(listed), err)
	}

	w = doJSON(r, http.MethodPost, "/api/admin/deliver", map[string]string{"orderNumber": "MM-TEST-A4"})
	if w.Code != http.StatusOK {
		t.Fatalf("deliver: want 200 got %d: %s", w.Code, w.Body.String())
	}
	var delivered struct {
		Success     bool   `json:"success"`
		DeliveryURL string `json:"deliveryUrl"`
		EmailSent   bool   `json:"emailSent"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &delivered)
	if !delivered.Success || delivered.DeliveryURL != "https://melodiemoment.de/song/MM-TEST-A4" || delivered.EmailSent {
		t.Fatalf("unexpected delivery result: %+v", delivered)
	}

	w = doJSON(r, http.MethodDelete, "/api/admin/deliverables/"+pdf.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: want 200 got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(r, http.MethodDelete, "/api/admin/deliverables/"+pdf.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete: want 404 got %d", w.Code)
	}
}

func TestBatchOrders(t *testing.T) {
	h, r := setupAdminHandlerTest(t)
	first := createAdminOrder(t, h, "MM-TEST-A5", nil)
	second := createAdminOrder(t, h, "MM-TEST-A6", nil)

	w := doJSON(r, http.MethodPost, "/api/admin/orders/batch", map[string]interface{}{
		"action":   "set_in_production",
		"orderIds": []string{first.ID, second.ID, "unknown-id"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("batch: want 200 got %d: %s", w.Code, w.Body.String())
	}
	var result service.BatchResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal batch failed: %v", err)
	}
	if result.Total != 3 || result.SuccessCount != 2 || result.FailedCount != 1 || result.Failed[0].ID != "unknown-id" {
		t.Fatalf("unexpected batch result: %+v", result)
	}

	w = doJSON(r, http.MethodPost, "/api/admin/orders/batch", map[string]interface{}{
		"action":   "archive",
		"orderIds": []string{first.ID},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown action: want 400 got %d", w.Code)
	}
}

func TestPrioritizeOrders(t *testing.T) {
	h, r := setupAdminHandlerTest(t)
	rush := createAdminOrder(t, h, "MM-TEST-A7", func(o *models.Order) { o.BumpRush = true })

	w := doJSON(r, http.MethodPost, "/api/admin/orders/prioritize", map[string]interface{}{"orderIds": []string{rush.ID}})
	if w.Code != http.StatusOK {
		t.Fatalf("prioritize: want 200 got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Analyzed int                      `json:"analyzed"`
		Analyses []service.PriorityResult `json:"analyses"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal prioritize failed: %v", err)
	}
	if body.Analyzed != 1 || len(body.Analyses) != 1 {
		t.Fatalf("unexpected analyses: %+v", body)
	}
	analysis := body.Analyses[0].Analysis
	if analysis.Priority != constants.PriorityHigh {
		t.Fatalf("rush order should be high, got %q", analysis.Priority)
	}
	if len(analysis.Reasons) != 1 || !strings.Contains(analysis.Reasons[0], "Rush") {
		t.Fatalf("unexpected rush reasons: %v", analysis.Reasons)
	}
	if analysis.SuggestedDeadline == nil || *analysis.SuggestedDeadline == "" {
		t.Fatalf("rush order needs a suggested deadline")
	}
}

func TestGenerationWithoutProviderIsUnavailable(t *testing.T) {
	h, r := setupAdminHandlerTest(t)
	createAdminOrder(t, h, "MM-TEST-A8", nil)

	w := doJSON(r, http.MethodPost, "/api/admin/orders/MM-TEST-A8/generate/prompt", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("generation without key: want 503 got %d: %s", w.Code, w.Body.String())
	}
}

func TestCampaignEndpoints(t *testing.T) {
	h, r := setupAdminHandlerTest(t)
	order := createAdminOrder(t, h, "MM-TEST-A9", nil)

	w := doJSON(r, http.MethodPost, "/api/admin/campaigns", map[string]interface{}{
		"name":     "Bewertung",
		"trigger":  "delivered",
		"isActive": true,
		"steps": []map[string]interface{}{
			{"subject": "Wie gefällt dir dein Lied, {{customer_name}}?", "body": "Wir freuen uns auf dein Feedback.", "delayDays": 3},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create campaign: want 201 got %d: %s", w.Code, w.Body.String())
	}
	var campaign models.DripCampaign
	if err := json.Unmarshal(w.Body.Bytes(), &campaign); err != nil || campaign.ID == 0 {
		t.Fatalf("unmarshal campaign failed: %v %s", err, w.Body.String())
	}

	w = doJSON(r, http.MethodPost, "/api/admin/campaigns", map[string]interface{}{
		"name":    "Leer",
		"trigger": "paid",
		"steps":   []map[string]interface{}{{"subject": "Hallo"}},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("step without body: want 400 got %d", w.Code)
	}

	w = doJSON(r, http.MethodGet, "/api/admin/campaigns", nil)
	var campaigns []models.DripCampaign
	if err := json.Unmarshal(w.Body.Bytes(), &campaigns); err != nil || len(campaigns) != 1 {
		t.Fatalf("expected 1 campaign, got %d %v", len(campaigns), err)
	}

	enrollPath := fmt.Sprintf("/api/admin/campaigns/%d/enroll", campaign.ID)
	w = doJSON(r, http.MethodPost, enrollPath, map[string]string{"orderId": "unknown-id"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("enroll unknown order: want 404 got %d", w.Code)
	}
	w = doJSON(r, http.MethodPost, enrollPath, map[string]string{"orderId": order.ID})
	if w.Code != http.StatusCreated {
		t.Fatalf("enroll: want 201 got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(r, http.MethodPost, enrollPath, map[string]string{"orderId": order.ID})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("second enroll: want 400 got %d", w.Code)
	}
	w = doJSON(r, http.MethodPost, "/api/admin/campaigns/abc/enroll", map[string]string{"orderId": order.ID})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad campaign id: want 400 got %d", w.Code)
	}
}
