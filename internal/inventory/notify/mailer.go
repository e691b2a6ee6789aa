// Package notify delivers low-stock alert mail to warehouse managers.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/NandhanI20020/IMS-sub000/pkg/config"
	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
	"github.com/go-resty/resty/v2"
)

// LowStockItem is one cell listed in a low-stock mail.
type LowStockItem struct {
	ProductID         string `json:"product_id"`
	SKU               string `json:"sku"`
	ProductName       string `json:"product_name"`
	OnHand            int64  `json:"on_hand"`
	Available         int64  `json:"available"`
	ReorderLevel      int64  `json:"reorder_level"`
	SuggestedQuantity int64  `json:"suggested_quantity"`
	AlertType         string `json:"alert_type"`
}

// Mailer sends low-stock alerts.
type Mailer interface {
	SendLowStockAlert(ctx context.Context, recipients []string, items []LowStockItem, warehouseName string) error
}

// HTTPMailer posts alerts to the mail service's REST API.
type HTTPMailer struct {
	httpClient *resty.Client
	from       string
	logger     *logger.Logger
}

// NewHTTPMailer builds a resty-backed mailer from the mail configuration.
func NewHTTPMailer(cfg config.MailConfig, log *logger.Logger) *HTTPMailer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &HTTPMailer{
		httpClient: client,
		from:       cfg.From,
		logger:     log.WithComponent("mailer"),
	}
}

type lowStockPayload struct {
	From          string         `json:"from,omitempty"`
	To            []string       `json:"to"`
	Subject       string         `json:"subject"`
	Template      string         `json:"template"`
	WarehouseName string         `json:"warehouse_name"`
	Items         []LowStockItem `json:"items"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// SendLowStockAlert posts one mail listing items to every recipient.
func (m *HTTPMailer) SendLowStockAlert(ctx context.Context, recipients []string, items []LowStockItem, warehouseName string) error {
	if len(recipients) == 0 || len(items) == 0 {
		return nil
	}

	payload := lowStockPayload{
		From:          m.from,
		To:            recipients,
		Subject:       Subject(items, warehouseName),
		Template:      "low_stock_alert",
		WarehouseName: warehouseName,
		Items:         items,
	}

	apiErr := new(apiError)
	resp, err := m.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetError(apiErr).
		Post("/v1/mail/send")
	if err != nil {
		return fmt.Errorf("send low stock mail: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("mail api error: status=%d, message=%s", resp.StatusCode(), apiErr.Message)
	}

	m.logger.Debug().
		Int("recipients", len(recipients)).
		Int("items", len(items)).
		Str("warehouse", warehouseName).
		Msg("low stock mail sent")
	return nil
}

// Subject renders the mail subject line.
func Subject(items []LowStockItem, warehouseName string) string {
	if len(items) == 1 {
		return fmt.Sprintf("[%s] %s is %s", warehouseName, items[0].ProductName, strings.ReplaceAll(items[0].AlertType, "_", " "))
	}
	return fmt.Sprintf("[%s] %d products need reordering", warehouseName, len(items))
}

// LogMailer writes alerts to the log. Used when no mail service is configured.
type LogMailer struct {
	logger *logger.Logger
}

// NewLogMailer creates a mailer that only logs.
func NewLogMailer(log *logger.Logger) *LogMailer {
	return &LogMailer{logger: log.WithComponent("mailer")}
}

func (m *LogMailer) SendLowStockAlert(_ context.Context, recipients []string, items []LowStockItem, warehouseName string) error {
	for _, item := range items {
		m.logger.Info().
			Strs("recipients", recipients).
			Str("warehouse", warehouseName).
			Str("sku", item.SKU).
			Int64("available", item.Available).
			Int64("reorder_level", item.ReorderLevel).
			Str("alert_type", item.AlertType).
			Msg("low stock alert (mail disabled)")
	}
	return nil
}

var (
	_ Mailer = (*HTTPMailer)(nil)
	_ Mailer = (*LogMailer)(nil)
)
