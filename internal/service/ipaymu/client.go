package ipaymu

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"SignalRelay/internal/domain/models"
	drepo "SignalRelay/internal/domain/repository"
	phttp "SignalRelay/pkg/http"
	"SignalRelay/pkg/logger"
)

// StatusPaid is the callback status the gateway sends for a settled payment.
const StatusPaid = "berhasil"

const paymentPath = "/api/v2/payment"

// Config holds the merchant credentials and the URLs handed to the gateway.
type Config struct {
	BaseURL        string
	VA             string
	APIKey         string
	PublicURL      string
	ReturnURL      string
	CallbackSecret string
}

// Client creates hosted payment pages on iPaymu.
type Client struct {
	cfg  Config
	http *phttp.Client
	log  *logger.Logger
	now  func() time.Time
}

var _ drepo.PaymentGateway = (*Client)(nil)

func New(cfg Config, httpClient *phttp.Client, log *logger.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &Client{
		cfg:  cfg,
		http: httpClient,
		log:  log.With(logger.String("component", "ipaymu")),
		now:  time.Now,
	}
}

type paymentRequest struct {
	Product     []string `json:"product"`
	Qty         []string `json:"qty"`
	Price       []string `json:"price"`
	ReturnURL   string   `json:"returnUrl"`
	NotifyURL   string   `json:"notifyUrl"`
	ReferenceID string   `json:"referenceId"`
}

type paymentResponse struct {
	Status  int    `json:"Status"`
	Message string `json:"Message"`
	Data    struct {
		SessionID string `json:"SessionID"`
		URL       string `json:"Url"`
	} `json:"Data"`
}

// CreatePaymentLink registers referenceID with the gateway and returns the
// hosted payment URL.
func (c *Client) CreatePaymentLink(ctx context.Context, referenceID string, pkg models.Package) (string, error) {
	body, err := json.Marshal(paymentRequest{
		Product:     []string{pkg.Name},
		Qty:         []string{"1"},
		Price:       []string{fmt.Sprint(pkg.Price)},
		ReturnURL:   c.returnURL(),
		NotifyURL:   c.NotifyURL(),
		ReferenceID: referenceID,
	})
	if err != nil {
		return "", fmt.Errorf("encode payment request: %w", err)
	}

	var out paymentResponse
	err = c.http.SendAndParse(ctx, &phttp.RequestOptions{
		Method: http.MethodPost,
		URL:    c.cfg.BaseURL + paymentPath,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"va":           c.cfg.VA,
			"signature":    Sign(c.cfg.VA, c.cfg.APIKey, body),
			"timestamp":    c.now().Format("20060102150405"),
		},
		Body: body,
	}, &out)
	if err != nil {
		var se *phttp.StatusError
		if errors.As(err, &se) {
			c.log.Warn("payment link rejected", logger.Int("status", se.Code), logger.String("reference_id", referenceID))
		}
		return "", fmt.Errorf("%w: create payment: %v", models.ErrTransport, err)
	}
	if out.Status != http.StatusOK || out.Data.URL == "" {
		return "", fmt.Errorf("%w: create payment: gateway status %d: %s", models.ErrTransport, out.Status, out.Message)
	}

	c.log.Info("payment link created", logger.String("reference_id", referenceID), logger.String("package", pkg.Key))
	return out.Data.URL, nil
}

// NotifyURL is the webhook address registered with every payment. The
// callback secret rides along as a query token because the gateway does
// not sign its callbacks.
func (c *Client) NotifyURL() string {
	u := c.cfg.PublicURL + "/webhooks/ipaymu"
	if c.cfg.CallbackSecret != "" {
		u += "?token=" + url.QueryEscape(c.cfg.CallbackSecret)
	}
	return u
}

func (c *Client) returnURL() string {
	if c.cfg.ReturnURL != "" {
		return c.cfg.ReturnURL
	}
	return c.cfg.PublicURL + "/payment/thanks"
}

// Sign computes the request signature:
// HMAC-SHA256(apiKey, "POST:" + va + ":" + hex(sha256(body)) + ":" + apiKey).
func Sign(va, apiKey string, body []byte) string {
	sum := sha256.Sum256(body)
	payload := "POST:" + va + ":" + strings.ToLower(hex.EncodeToString(sum[:])) + ":" + apiKey
	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
