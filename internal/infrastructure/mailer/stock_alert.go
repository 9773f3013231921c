package mailer

import (
	"context"
	"fmt"

	"github.com/alimikegami/point-of-sales/catalog-service/config"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/domain"
	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// StockAlertMailer emails the configured recipient when a product runs low.
type StockAlertMailer struct {
	dialer    dialer
	sender    string
	recipient string
}

func CreateStockAlertMailer(cfg config.MailConfig) *StockAlertMailer {
	return &StockAlertMailer{
		dialer:    gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Sender, cfg.Password),
		sender:    cfg.Sender,
		recipient: cfg.AlertRecipient,
	}
}

func (m *StockAlertMailer) NotifyLowStock(ctx context.Context, product domain.Product) (err error) {
	if m.recipient == "" {
		log.Ctx(ctx).Debug().Str("component", "NotifyLowStock").Str("sku", product.SKU).Msg("no stock alert recipient configured")
		return nil
	}

	message := gomail.NewMessage()
	message.SetHeader("From", m.sender)
	message.SetHeader("To", m.recipient)
	message.SetHeader("Subject", fmt.Sprintf("Low stock: %s", product.Title))
	message.SetBody("text/plain", fmt.Sprintf(
		"Product %s (SKU %s) has %d units left.\nVendor: %s\nStatus: %s\n",
		product.Title, product.SKU, product.Stock, product.Vendor, product.Status,
	))

	if err := m.dialer.DialAndSend(message); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("component", "NotifyLowStock").Str("sku", product.SKU).Msg("")
		return err
	}

	return nil
}
