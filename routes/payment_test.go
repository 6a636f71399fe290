package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stayza-server/models"
	"stayza-server/services"
	"stayza-server/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/kataras/iris/v12"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newWebhookEnv wires the webhook route against an in-memory database and a
// real Redis protocol server, so the dedupe layer is exercised for real.
func newWebhookEnv(t *testing.T) *iris.Application {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access connection pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.Booking{},
		&models.PaymentRecord{},
		&models.RefundEntry{},
		&models.AvailabilityReservation{},
		&models.AuditLog{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}
	storage.DB = db

	mr := miniredis.RunT(t)
	storage.Redis = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { storage.Redis = nil })

	app := iris.New()
	payment := app.Party("/api/payment")
	{
		payment.Post("/webhook", PaymentWebhook)
	}
	if err := app.Build(); err != nil {
		t.Fatalf("failed to build app: %v", err)
	}
	return app
}

// flakyGateway fails the first deliveries transiently, then verifies.
type flakyGateway struct {
	failures int
	verifies int
	result   services.VerificationResult
}

func (g *flakyGateway) InitializeTransaction(ctx context.Context, req services.InitializeRequest) (*services.InitializeResult, error) {
	return &services.InitializeResult{Reference: req.Reference}, nil
}

func (g *flakyGateway) VerifyTransaction(ctx context.Context, reference string) (*services.VerificationResult, error) {
	g.verifies++
	if g.failures > 0 {
		g.failures--
		return nil, services.ErrGatewayUnavailable
	}
	r := g.result
	return &r, nil
}

func postWebhook(t *testing.T, app *iris.Application, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	return resp
}

// A delivery that fails transiently must not burn the dedupe key: the
// gateway's redelivery of the same event has to be processed and confirm
// the booking, while a delivery after that is answered as a duplicate.
func TestWebhookRedeliveryAfterTransientFailure(t *testing.T) {
	app := newWebhookEnv(t)

	booking := models.Booking{PropertyID: 1, GuestID: 2, Status: models.BookingStatusAwaitingPayment, Total: 190000, Currency: "NGN"}
	if err := storage.DB.Create(&booking).Error; err != nil {
		t.Fatalf("failed to seed booking: %v", err)
	}
	record := models.PaymentRecord{
		BookingID: booking.ID,
		Reference: "ref-hook",
		Amount:    190000,
		Currency:  "NGN",
		Status:    models.PaymentStatusPending,
	}
	if err := storage.DB.Create(&record).Error; err != nil {
		t.Fatalf("failed to seed payment record: %v", err)
	}

	gw := &flakyGateway{
		failures: 1,
		result: services.VerificationResult{
			Status:   services.GatewayStatusSuccess,
			Amount:   190000,
			Currency: "NGN",
			Raw:      json.RawMessage(`{"status":true}`),
		},
	}
	prev := services.Gateway
	services.Gateway = gw
	t.Cleanup(func() { services.Gateway = prev })

	body := `{"event":"charge.success","data":{"reference":"ref-hook"}}`

	// first delivery hits the transient gateway failure
	resp := postWebhook(t, app, body)
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for the transient failure, got %d", resp.Code)
	}

	// redelivery must be processed, not answered as a duplicate
	resp2 := postWebhook(t, app, body)
	if resp2.Code != http.StatusOK {
		t.Fatalf("expected 200 for the redelivery, got %d: %s", resp2.Code, resp2.Body.String())
	}
	var parsed struct {
		Confirmed bool `json:"confirmed"`
		Duplicate bool `json:"duplicate"`
	}
	if err := json.Unmarshal(resp2.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("failed to decode redelivery response: %v", err)
	}
	if parsed.Duplicate || !parsed.Confirmed {
		t.Fatalf("expected the redelivery to confirm, got %s", resp2.Body.String())
	}

	var reloaded models.Booking
	if err := storage.DB.First(&reloaded, booking.ID).Error; err != nil {
		t.Fatalf("failed to reload booking: %v", err)
	}
	if reloaded.Status != models.BookingStatusConfirmed {
		t.Errorf("expected booking confirmed via webhook, got %s", reloaded.Status)
	}

	// a third delivery of the same event is now a dedupe hit
	resp3 := postWebhook(t, app, body)
	var parsed3 struct {
		Duplicate bool `json:"duplicate"`
	}
	if err := json.Unmarshal(resp3.Body.Bytes(), &parsed3); err != nil {
		t.Fatalf("failed to decode third response: %v", err)
	}
	if !parsed3.Duplicate {
		t.Fatalf("expected the third delivery to be deduped, got %s", resp3.Body.String())
	}

	if gw.verifies != 2 {
		t.Errorf("expected exactly two gateway verify calls, got %d", gw.verifies)
	}
}
