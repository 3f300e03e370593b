// Package notify is the outbound delivery collaborator for verification
// codes and links. Delivery is best-effort and fully decoupled from the
// verification engines: every send runs on its own goroutine with a
// detached context, failures are logged here and never propagated, and an
// issued record stays valid whether or not its code arrives.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/reservation-app/api/internal/config"
	"github.com/reservation-app/api/internal/infrastructure/smtp"
	"github.com/reservation-app/api/internal/infrastructure/sns"
)

const sendTimeout = 30 * time.Second

// Notifier delivers codes and verification links out of band.
type Notifier interface {
	SendCode(phone, code string)
	CallWithCode(phone, code string)
	SendVerificationLink(email, token string)
}

type notifier struct {
	mailer    smtp.Mailer
	smsSender sns.SMSSender

	verifyEmailURL string
	sendSMSText    bool
	sendSMSCall    bool
}

// New builds the process-wide notifier. It is constructed once in main and
// injected; the engines never construct their own.
func New(cfg *config.Config, mailer smtp.Mailer, smsSender sns.SMSSender) Notifier {
	return &notifier{
		mailer:         mailer,
		smsSender:      smsSender,
		verifyEmailURL: cfg.VerifyEmailURL,
		sendSMSText:    cfg.SendSMSText,
		sendSMSCall:    cfg.SendSMSCall,
	}
}

func (n *notifier) SendCode(phone, code string) {
	if !n.sendSMSText || n.smsSender == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := n.smsSender.SendSMS(ctx, phone, "Your code is "+code); err != nil {
			slog.Warn("could not deliver SMS code", "phone", phone, "err", err)
		}
	}()
}

// CallWithCode delivers the code as a spelled-out message on the SMS
// channel. TODO: route through a voice provider once one is provisioned;
// SNS has no text-to-speech call API.
func (n *notifier) CallWithCode(phone, code string) {
	if !n.sendSMSCall || n.smsSender == nil {
		return
	}
	spelled := strings.Join(strings.Split(code, ""), ". ")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := n.smsSender.SendSMS(ctx, phone, "Your code is: "+spelled); err != nil {
			slog.Warn("could not deliver code call", "phone", phone, "err", err)
		}
	}()
}

func (n *notifier) SendVerificationLink(email, token string) {
	if n.mailer == nil {
		return
	}
	link := n.verifyEmailURL + "?token=" + url.QueryEscape(token)
	body := fmt.Sprintf(
		"<h1>Welcome to Reservation App!</h1><p>Thank you for registering with us!</p> <p>Please verify your email by clicking <a href=%q>here</a>.</p>",
		link,
	)
	go func() {
		if err := n.mailer.SendEmail(email, "Welcome to Reservation App!", body); err != nil {
			slog.Warn("could not deliver verification email", "email", email, "err", err)
		}
	}()
}
