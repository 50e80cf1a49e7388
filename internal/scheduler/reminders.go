package scheduler

import (
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/poolfund/lending-service/internal/lending"
	"github.com/poolfund/lending-service/internal/models"
)

// OverdueSource exposes the read-only overdue loan query.
type OverdueSource interface {
	OverdueLoans(now time.Time) []models.Loan
}

// UserLookup resolves a borrower id to the stored user.
type UserLookup interface {
	FindUserByID(id int64) (*models.User, error)
}

// ReminderMailer sends overdue reminders.
type ReminderMailer interface {
	SendOverdueReminder(to, username string, loanID int64, amount uint64, dueDate time.Time) error
}

// Reminders runs the daily overdue-loan reminder job. It only reads engine
// state; reminders never mutate loans, pools or scores.
type Reminders struct {
	engine OverdueSource
	users  UserLookup
	mailer ReminderMailer
	clock  lending.Clock
	log    *logrus.Logger
	cron   *cron.Cron
}

// NewReminders initializes the reminder scheduler
func NewReminders(engine OverdueSource, users UserLookup, mailer ReminderMailer, clock lending.Clock, log *logrus.Logger) *Reminders {
	return &Reminders{
		engine: engine,
		users:  users,
		mailer: mailer,
		clock:  clock,
		log:    log,
		cron:   cron.New(),
	}
}

// Start schedules the daily run.
func (r *Reminders) Start() error {
	if _, err := r.cron.AddFunc("@daily", r.Run); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the scheduler.
func (r *Reminders) Stop() {
	r.cron.Stop()
}

// Run scans for overdue loans and emails each borrower a reminder.
func (r *Reminders) Run() {
	now := r.clock.Now()
	overdue := r.engine.OverdueLoans(now)
	if len(overdue) == 0 {
		return
	}
	r.log.Infof("Found %d overdue loans", len(overdue))

	for _, loan := range overdue {
		id, err := strconv.ParseInt(loan.Borrower, 10, 64)
		if err != nil {
			r.log.Errorf("Skipping loan %d: bad borrower id %q", loan.ID, loan.Borrower)
			continue
		}
		user, err := r.users.FindUserByID(id)
		if err != nil {
			r.log.Errorf("Skipping loan %d: %v", loan.ID, err)
			continue
		}
		if err := r.mailer.SendOverdueReminder(user.Email, user.Username, loan.ID, loan.Amount, loan.DueDate); err != nil {
			r.log.Errorf("Failed to remind %s about loan %d: %v", user.Email, loan.ID, err)
		}
	}
}
