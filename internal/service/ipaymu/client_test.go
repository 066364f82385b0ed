package ipaymu

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"SignalRelay/internal/domain/models"
	phttp "SignalRelay/pkg/http"
	"SignalRelay/pkg/logger"
)

var goldMonthly = models.Package{Key: "gold_monthly", Name: "Gold Monthly", Price: 149000, DurationDays: 30, Type: models.PackageMain}

func TestSignDeterministic(t *testing.T) {
	body := []byte(`{"referenceId":"user-1-package-gold_monthly-x"}`)
	a := Sign("1179000899", "key", body)
	b := Sign("1179000899", "key", body)
	if a != b {
		t.Fatalf("signature not deterministic: %s vs %s", a, b)
	}
	if len(a) != 64 || strings.ToLower(a) != a {
		t.Fatalf("want 64 lowercase hex chars, got %q", a)
	}
	if Sign("1179000899", "other", body) == a {
		t.Fatalf("signature should depend on the api key")
	}
}

func TestCreatePaymentLink(t *testing.T) {
	var gotBody []byte
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != paymentPath || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"Status":200,"Message":"success","Data":{"SessionID":"s1","Url":"https://pay.example/s1"}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/", VA: "va1", APIKey: "k1", PublicURL: "https://relay.example", CallbackSecret: "s3cret"},
		phttp.NewClient(phttp.WithTimeout(time.Second)), logger.NewNop())
	c.now = func() time.Time { return time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC) }

	link, err := c.CreatePaymentLink(context.Background(), "user-7-package-gold_monthly-abc", goldMonthly)
	if err != nil {
		t.Fatalf("CreatePaymentLink: %v", err)
	}
	if link != "https://pay.example/s1" {
		t.Fatalf("link = %q", link)
	}
	if gotHeaders.Get("va") != "va1" || gotHeaders.Get("timestamp") != "20240501103000" {
		t.Fatalf("headers = %v", gotHeaders)
	}
	if gotHeaders.Get("signature") != Sign("va1", "k1", gotBody) {
		t.Fatalf("signature does not match body")
	}

	var req paymentRequest
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if req.ReferenceID != "user-7-package-gold_monthly-abc" || req.Price[0] != "149000" {
		t.Fatalf("body = %+v", req)
	}
	if req.NotifyURL != "https://relay.example/webhooks/ipaymu?token=s3cret" {
		t.Fatalf("notify url = %q", req.NotifyURL)
	}
}

func TestCreatePaymentLinkGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Status":401,"Message":"unauthorized"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, phttp.NewClient(), logger.NewNop())
	_, err := c.CreatePaymentLink(context.Background(), "ref", goldMonthly)
	if !errors.Is(err, models.ErrTransport) {
		t.Fatalf("want ErrTransport, got %v", err)
	}
}

func TestVerifier(t *testing.T) {
	body := []byte("status=berhasil&reference_id=r1")
	v := NewVerifier("s3cret")

	if err := v.Verify("s3cret", "", body); err != nil {
		t.Fatalf("token: %v", err)
	}
	if err := v.Verify("", v.Signature(body), body); err != nil {
		t.Fatalf("signature: %v", err)
	}
	if err := v.Verify("wrong", "", body); !errors.Is(err, models.ErrAuthentication) {
		t.Fatalf("wrong token accepted: %v", err)
	}
	if err := v.Verify("", v.Signature([]byte("tampered")), body); !errors.Is(err, models.ErrAuthentication) {
		t.Fatalf("bad signature accepted: %v", err)
	}
	if err := NewVerifier("").Verify("", "", body); !errors.Is(err, models.ErrAuthentication) {
		t.Fatalf("empty secret must fail closed, got %v", err)
	}
}

func TestIsPaid(t *testing.T) {
	for status, want := range map[string]bool{"berhasil": true, " Berhasil ": true, "pending": false, "": false} {
		if got := IsPaid(status); got != want {
			t.Errorf("IsPaid(%q) = %v, want %v", status, got, want)
		}
	}
}
