package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NandhanI20020/IMS-sub000/internal/inventory/notify"
	"github.com/NandhanI20020/IMS-sub000/pkg/config"
	"github.com/NandhanI20020/IMS-sub000/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item() notify.LowStockItem {
	return notify.LowStockItem{
		ProductID:         "p1",
		SKU:               "SKU-1",
		ProductName:       "Widget",
		OnHand:            8,
		Available:         8,
		ReorderLevel:      10,
		SuggestedQuantity: 50,
		AlertType:         "low_stock",
	}
}

func TestHTTPMailer_SendLowStockAlert(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/mail/send", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	mailer := notify.NewHTTPMailer(config.MailConfig{BaseURL: srv.URL + "/", APIKey: "k", From: "ims@example.com"}, logger.Nop())
	err := mailer.SendLowStockAlert(context.Background(), []string{"a@example.com"}, []notify.LowStockItem{item()}, "Main")
	require.NoError(t, err)

	assert.Equal(t, "Bearer k", auth)
	assert.Equal(t, "Main", got["warehouse_name"])
	assert.Equal(t, "[Main] Widget is low stock", got["subject"])
	assert.Len(t, got["items"], 1)
}

func TestHTTPMailer_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"smtp down"}`))
	}))
	defer srv.Close()

	mailer := notify.NewHTTPMailer(config.MailConfig{BaseURL: srv.URL}, logger.Nop())
	err := mailer.SendLowStockAlert(context.Background(), []string{"a@example.com"}, []notify.LowStockItem{item()}, "Main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
}

func TestHTTPMailer_NoRecipients(t *testing.T) {
	mailer := notify.NewHTTPMailer(config.MailConfig{BaseURL: "http://127.0.0.1:1"}, logger.Nop())
	assert.NoError(t, mailer.SendLowStockAlert(context.Background(), nil, []notify.LowStockItem{item()}, "Main"))
}

func TestSubject(t *testing.T) {
	out := item()
	out.AlertType = "out_of_stock"
	assert.Equal(t, "[East] Widget is out of stock", notify.Subject([]notify.LowStockItem{out}, "East"))
	assert.Equal(t, "[East] 2 products need reordering", notify.Subject([]notify.LowStockItem{out, item()}, "East"))
}
