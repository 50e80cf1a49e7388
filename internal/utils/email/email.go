package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/poolfund/lending-service/internal/config"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// SendRepaymentReceipt sends a receipt after a committed repayment
func (s *Sender) SendRepaymentReceipt(to, username string, loanID int64, amount, refund uint64, onTime bool) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = fmt.Sprintf("Repayment Received for Loan %d", loanID)

	body := fmt.Sprintf("Dear %s,\n\n", username)
	body += fmt.Sprintf(
		"We received your repayment of %d for loan %d.\n"+
			"Repayment time: %s\n",
		amount, loanID, time.Now().Format("2006-01-02 15:04:05"),
	)
	if refund > 0 {
		body += fmt.Sprintf("An overpayment of %d has been refunded to you.\n", refund)
	}
	if onTime {
		body += "The repayment was on time and your credit score has improved.\n"
	} else {
		body += "The repayment was late, which has lowered your credit score.\n"
	}
	body += "\nBest regards,\nPoolFund Lending"
	e.Text = []byte(body)

	// Send email
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send receipt to %s: %v", to, err)
		return fmt.Errorf("failed to send receipt: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}

// SendOverdueReminder sends a reminder for an overdue loan
func (s *Sender) SendOverdueReminder(to, username string, loanID int64, amount uint64, dueDate time.Time) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = "Overdue Loan Payment Notification"

	body := fmt.Sprintf("Dear %s,\n\n", username)
	body += fmt.Sprintf(
		"Your loan %d of %d was due on %s and is now overdue.\n"+
			"Late repayment lowers your credit score. Please repay as soon as possible.\n",
		loanID, amount, dueDate.Format("2006-01-02"),
	)
	body += "\nBest regards,\nPoolFund Lending"
	e.Text = []byte(body)

	// Send email
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send reminder to %s: %v", to, err)
		return fmt.Errorf("failed to send reminder: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}
