// services/notifier.go
package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"fitsense-backend/config"
	"fitsense-backend/models"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"gorm.io/gorm"
)

// Notifier delivers member-facing messages. Callers treat every error as
// non-fatal.
type Notifier interface {
	SendReceipt(ctx context.Context, record models.MemberRecord, entry models.LedgerEntry) error
	SendExpiry(ctx context.Context, user models.User, membership models.Membership) error
}

type NopNotifier struct{}

func (NopNotifier) SendReceipt(context.Context, models.MemberRecord, models.LedgerEntry) error {
	return nil
}

func (NopNotifier) SendExpiry(context.Context, models.User, models.Membership) error {
	return nil
}

type TwilioNotifier struct {
	db     *gorm.DB
	client *twilio.RestClient
	cfg    config.TwilioConfig
}

func NewTwilioNotifier(db *gorm.DB, cfg config.TwilioConfig) *TwilioNotifier {
	return &TwilioNotifier{
		db:  db,
		cfg: cfg,
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		}),
	}
}

func (n *TwilioNotifier) SendReceipt(ctx context.Context, record models.MemberRecord, entry models.LedgerEntry) error {
	if record.Phone == nil {
		return nil
	}
	message := fmt.Sprintf("Hi %s, we received %s via %s. Paid %s of %s, balance %s. Thank you!",
		record.Name,
		entry.Amount.StringFixed(2),
		entry.PaymentMode,
		record.PaidAmount.StringFixed(2),
		record.PlanTotalAmount.StringFixed(2),
		record.RemainingAmount.StringFixed(2))

	recordID := record.ID
	return n.send(ctx, *record.Phone, message, models.MessageLog{
		MemberRecordID: &recordID,
		UserID:         record.UserID,
		Kind:           "receipt",
	})
}

func (n *TwilioNotifier) SendExpiry(ctx context.Context, user models.User, membership models.Membership) error {
	if user.Phone == nil {
		return nil
	}
	message := fmt.Sprintf("Hi %s, your %s membership ended on %s. Renew at the front desk to keep training!",
		user.Name, membership.PlanName, membership.EndDate.Format("02 Jan 2006"))

	userID := user.ID
	return n.send(ctx, *user.Phone, message, models.MessageLog{
		UserID: &userID,
		Kind:   "expiry",
	})
}

func (n *TwilioNotifier) send(ctx context.Context, phone, message string, entry models.MessageLog) error {
	// Determine channel (WhatsApp if available, else SMS)
	channel := "sms"
	to := phone
	if strings.HasPrefix(phone, "+") && n.cfg.WhatsAppNumber != "" {
		to = "whatsapp:" + phone
		channel = "whatsapp"
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetBody(message)
	if channel == "whatsapp" {
		params.SetFrom("whatsapp:" + n.cfg.WhatsAppNumber)
	} else {
		params.SetFrom(n.cfg.FromNumber)
	}

	resp, err := n.client.Api.CreateMessage(params)
	status := "sent"
	errorMsg := ""

	if err != nil {
		log.Printf("[NOTIFY] Failed to send %s to %s: %v", entry.Kind, phone, err)
		status = "failed"
		errorMsg = err.Error()
	} else if resp.Sid != nil {
		log.Printf("[NOTIFY] %s sent to %s, SID: %s", entry.Kind, phone, *resp.Sid)
	}

	entry.Message = message
	entry.Status = status
	entry.ErrorMessage = errorMsg
	entry.Channel = channel
	entry.SentAt = time.Now()

	if lerr := n.db.WithContext(ctx).Create(&entry).Error; lerr != nil {
		log.Printf("[NOTIFY] Failed to log %s message: %v", entry.Kind, lerr)
	}
	return err
}

// notifyAsync runs fn in the background and only logs failures.
func notifyAsync(what string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Printf("[NOTIFY] %s failed: %v", what, err)
		}
	}()
}
