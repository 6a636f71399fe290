package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"stayza-server/models"

	"gorm.io/gorm"
)

func TestReconcileMatchingAmount(t *testing.T) {
	record := &models.PaymentRecord{Amount: 190000, Currency: "NGN"}
	result := &VerificationResult{Status: GatewayStatusSuccess, Amount: 190000, Currency: "NGN"}

	if err := reconcile(record, result); err != nil {
		t.Fatalf("expected matching amounts to reconcile, got %v", err)
	}
}

func TestReconcileAmountMismatch(t *testing.T) {
	record := &models.PaymentRecord{Amount: 190000, Currency: "NGN"}
	result := &VerificationResult{Status: GatewayStatusSuccess, Amount: 180000, Currency: "NGN"}

	err := reconcile(record, result)
	if !errors.Is(err, ErrReconciliationMismatch) {
		t.Fatalf("expected ErrReconciliationMismatch, got %v", err)
	}
}

func TestReconcileCurrencyMismatch(t *testing.T) {
	record := &models.PaymentRecord{Amount: 190000, Currency: "NGN"}
	result := &VerificationResult{Status: GatewayStatusSuccess, Amount: 190000, Currency: "USD"}

	err := reconcile(record, result)
	if !errors.Is(err, ErrReconciliationMismatch) {
		t.Fatalf("expected ErrReconciliationMismatch for currency drift, got %v", err)
	}
}

func TestPaystackInitializeTransaction(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": true,
			"message": "Authorization URL created",
			"data": {
				"authorization_url": "https://checkout.example/abc",
				"access_code": "abc",
				"reference": "ref-123"
			}
		}`))
	}))
	defer server.Close()

	client := &PaystackClient{BaseURL: server.URL, SecretKey: "sk_test", HTTPClient: server.Client()}
	result, err := client.InitializeTransaction(context.Background(), InitializeRequest{
		Reference: "ref-123",
		Email:     "guest@example.com",
		Amount:    190000,
		Currency:  "NGN",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/transaction/initialize" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer sk_test" {
		t.Errorf("unexpected authorization header %q", gotAuth)
	}
	if result.AuthorizationURL != "https://checkout.example/abc" {
		t.Errorf("unexpected authorization URL %q", result.AuthorizationURL)
	}
	if result.Reference != "ref-123" {
		t.Errorf("unexpected reference %q", result.Reference)
	}
}

func TestPaystackVerifyTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/ref-123" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": true,
			"message": "Verification successful",
			"data": {
				"status": "success",
				"amount": 190000,
				"currency": "NGN",
				"paid_at": "2030-01-10T12:00:00.000Z"
			}
		}`))
	}))
	defer server.Close()

	client := &PaystackClient{BaseURL: server.URL, SecretKey: "sk_test", HTTPClient: server.Client()}
	result, err := client.VerifyTransaction(context.Background(), "ref-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != GatewayStatusSuccess {
		t.Errorf("unexpected status %q", result.Status)
	}
	if result.Amount != 190000 || result.Currency != "NGN" {
		t.Errorf("unexpected amount %d %s", result.Amount, result.Currency)
	}
	if len(result.Raw) == 0 {
		t.Error("expected the raw gateway payload to be captured")
	}
}

func TestPaystackServerErrorIsGatewayUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := &PaystackClient{BaseURL: server.URL, SecretKey: "sk_test", HTTPClient: server.Client()}

	_, err := client.VerifyTransaction(context.Background(), "ref-123")
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Errorf("expected ErrGatewayUnavailable for 502, got %v", err)
	}

	_, err = client.InitializeTransaction(context.Background(), InitializeRequest{Reference: "r"})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Errorf("expected ErrGatewayUnavailable for 502 initialize, got %v", err)
	}
}

func TestPaystackConnectionRefusedIsGatewayUnavailable(t *testing.T) {
	// Closed server: the port is no longer listening.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := &PaystackClient{BaseURL: url, SecretKey: "sk_test", HTTPClient: http.DefaultClient}
	_, err := client.VerifyTransaction(context.Background(), "ref-123")
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Errorf("expected ErrGatewayUnavailable for refused connection, got %v", err)
	}
}

// countingGateway scripts VerifyTransaction results and counts outbound calls.
type countingGateway struct {
	verifies int
	result   VerificationResult
}

func (g *countingGateway) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	return &InitializeResult{Reference: req.Reference, AuthorizationURL: "https://checkout.example/init"}, nil
}

func (g *countingGateway) VerifyTransaction(ctx context.Context, reference string) (*VerificationResult, error) {
	g.verifies++
	r := g.result
	return &r, nil
}

func setTestGateway(t *testing.T, gw PaymentGateway) {
	t.Helper()
	prev := Gateway
	Gateway = gw
	t.Cleanup(func() { Gateway = prev })
}

func seedAwaitingBooking(t *testing.T, db *gorm.DB, total int64, reference string) *models.Booking {
	t.Helper()

	booking := models.Booking{PropertyID: 1, GuestID: 2, Status: models.BookingStatusAwaitingPayment, Total: total, Currency: "NGN"}
	if err := db.Create(&booking).Error; err != nil {
		t.Fatalf("failed to seed booking: %v", err)
	}
	record := models.PaymentRecord{
		BookingID: booking.ID,
		Reference: reference,
		Amount:    total,
		Currency:  "NGN",
		Status:    models.PaymentStatusPending,
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("failed to seed payment record: %v", err)
	}
	return &booking
}

// Re-delivering a verified event must yield exactly one confirmed transition
// and exactly one outbound gateway call.
func TestVerifyPaymentIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	booking := seedAwaitingBooking(t, db, 190000, "ref-idem")
	gw := &countingGateway{result: VerificationResult{
		Status:   GatewayStatusSuccess,
		Amount:   190000,
		Currency: "NGN",
		Raw:      json.RawMessage(`{"status":true}`),
	}}
	setTestGateway(t, gw)

	first, err := VerifyPayment(context.Background(), db, "ref-idem")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.Confirmed || first.AlreadyVerified {
		t.Fatalf("expected first delivery to confirm, got %+v", first)
	}

	second, err := VerifyPayment(context.Background(), db, "ref-idem")
	if err != nil {
		t.Fatalf("unexpected error on re-delivery: %v", err)
	}
	if second.Confirmed || !second.AlreadyVerified {
		t.Fatalf("expected re-delivery to short-circuit, got %+v", second)
	}

	if gw.verifies != 1 {
		t.Errorf("expected exactly one gateway verify call, got %d", gw.verifies)
	}

	var reloaded models.Booking
	if err := db.First(&reloaded, booking.ID).Error; err != nil {
		t.Fatalf("failed to reload booking: %v", err)
	}
	if reloaded.Status != models.BookingStatusConfirmed {
		t.Errorf("expected booking confirmed, got %s", reloaded.Status)
	}
}

// A gateway success for the wrong amount parks the record in mismatch and
// never confirms the booking.
func TestVerifyPaymentMismatchKeepsBookingAwaitingPayment(t *testing.T) {
	db := newTestDB(t)
	booking := seedAwaitingBooking(t, db, 190000, "ref-drift")
	gw := &countingGateway{result: VerificationResult{
		Status:   GatewayStatusSuccess,
		Amount:   180000,
		Currency: "NGN",
		Raw:      json.RawMessage(`{"status":true}`),
	}}
	setTestGateway(t, gw)

	_, err := VerifyPayment(context.Background(), db, "ref-drift")
	if !errors.Is(err, ErrReconciliationMismatch) {
		t.Fatalf("expected ErrReconciliationMismatch, got %v", err)
	}

	var reloaded models.Booking
	if err := db.First(&reloaded, booking.ID).Error; err != nil {
		t.Fatalf("failed to reload booking: %v", err)
	}
	if reloaded.Status != models.BookingStatusAwaitingPayment {
		t.Errorf("expected booking to stay awaiting_payment, got %s", reloaded.Status)
	}

	var record models.PaymentRecord
	if err := db.Where("reference = ?", "ref-drift").First(&record).Error; err != nil {
		t.Fatalf("failed to reload record: %v", err)
	}
	if record.Status != models.PaymentStatusMismatch {
		t.Errorf("expected record parked in mismatch, got %s", record.Status)
	}
}

// expiringGateway simulates the payment window sweep failing the record
// while the initialize call is in flight.
type expiringGateway struct {
	db *gorm.DB
}

func (g *expiringGateway) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	err := g.db.Model(&models.PaymentRecord{}).
		Where("reference = ?", req.Reference).
		Update("status", models.PaymentStatusFailed).Error
	if err != nil {
		return nil, err
	}
	return &InitializeResult{Reference: req.Reference, AuthorizationURL: "https://checkout.example/stale"}, nil
}

func (g *expiringGateway) VerifyTransaction(ctx context.Context, reference string) (*VerificationResult, error) {
	return nil, errors.New("not expected")
}

func TestInitializePaymentLosingExpiryRaceIsNotPending(t *testing.T) {
	db := newTestDB(t)

	booking := models.Booking{PropertyID: 1, GuestID: 2, Status: models.BookingStatusAwaitingPayment, Total: 190000, Currency: "NGN"}
	if err := db.Create(&booking).Error; err != nil {
		t.Fatalf("failed to seed booking: %v", err)
	}
	setTestGateway(t, &expiringGateway{db: db})

	_, err := InitializePayment(context.Background(), db, booking.ID)
	if !errors.Is(err, ErrPaymentNotPending) {
		t.Fatalf("expected ErrPaymentNotPending after losing the expiry race, got %v", err)
	}

	var record models.PaymentRecord
	if err := db.Where("booking_id = ?", booking.ID).First(&record).Error; err != nil {
		t.Fatalf("failed to load record: %v", err)
	}
	if record.Status != models.PaymentStatusFailed {
		t.Errorf("expected the failed status to survive, got %s", record.Status)
	}
}

func TestPaystackDeclinedInitializeIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status": false, "message": "Invalid amount"}`))
	}))
	defer server.Close()

	client := &PaystackClient{BaseURL: server.URL, SecretKey: "sk_test", HTTPClient: server.Client()}
	_, err := client.InitializeTransaction(context.Background(), InitializeRequest{Reference: "r"})
	if err == nil {
		t.Fatal("expected an error for a declined initialize")
	}
	if errors.Is(err, ErrGatewayUnavailable) {
		t.Error("a gateway rejection must not look transient")
	}
}
