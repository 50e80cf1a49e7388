package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/poolfund/lending-service/internal/config"
	"github.com/poolfund/lending-service/internal/lending"
	"github.com/poolfund/lending-service/internal/models"
	"github.com/poolfund/lending-service/internal/utils"
)

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(user *models.User) error
	FindUserByEmail(email string) (*models.User, error)
	FindUserByID(id int64) (*models.User, error)
}

// OutcomeReporter forwards repayment outcomes to the external credit bureau.
type OutcomeReporter interface {
	ReportOutcome(borrower string, score int, onTime bool) error
}

// ReceiptMailer sends repayment receipts to borrowers.
type ReceiptMailer interface {
	SendRepaymentReceipt(to, username string, loanID int64, amount, refund uint64, onTime bool) error
}

// Service handles business logic
type Service struct {
	users  UserStore
	engine *lending.Engine
	log    *logrus.Logger
	config *config.Config
	bureau OutcomeReporter
	mailer ReceiptMailer
}

// RepaymentResult is the caller-facing outcome of a repayment: the engine
// receipt plus an HMAC signature over it.
type RepaymentResult struct {
	lending.Receipt
	Signature string `json:"signature"`
}

// NewService initializes a new service
func NewService(users UserStore, engine *lending.Engine, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{users: users, engine: engine, log: log, config: cfg}
}

// SetBureau wires the optional credit bureau reporter.
func (s *Service) SetBureau(bureau OutcomeReporter) { s.bureau = bureau }

// SetMailer wires the optional receipt mailer.
func (s *Service) SetMailer(mailer ReceiptMailer) { s.mailer = mailer }

// Register creates a new user with hashed password
func (s *Service) Register(username, email, password string) (*models.User, error) {
	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		Role:         models.RoleBorrower,
		PasswordHash: string(hashedPassword),
	}

	if err := s.users.CreateUser(user); err != nil {
		return nil, err
	}

	s.log.Infof("User registered: %s", user.Email)
	return user, nil
}

// Login authenticates a user and returns a JWT token
func (s *Service) Login(email, password string) (string, error) {
	user, err := s.users.FindUserByEmail(email)
	if err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	// Generate JWT
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", user.ID),
		"role": user.Role,
		"exp":  jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", user.Email)
	return tokenString, nil
}

// CreatePool registers a new capital pool. The authorization gate (admin
// role) is enforced by the middleware before this is reached.
func (s *Service) CreatePool(ctx context.Context, riskLevel int, initialFunds uint64, attached *uint64) (models.RiskPool, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return models.RiskPool{}, err
	}

	pool, err := s.engine.CreatePool(riskLevel, initialFunds, attached)
	if err != nil {
		return models.RiskPool{}, err
	}

	s.log.Infof("Pool %d created by user %s: risk %d, funds %d", pool.ID, userID, pool.RiskLevel, pool.TotalFunds)
	return pool, nil
}

// AddFunds tops up an existing pool.
func (s *Service) AddFunds(ctx context.Context, poolID int64, amount uint64, attached *uint64) error {
	userID, err := callerID(ctx)
	if err != nil {
		return err
	}

	if err := s.engine.AddFunds(poolID, amount, attached); err != nil {
		return err
	}

	s.log.Infof("Pool %d topped up by user %s: +%d", poolID, userID, amount)
	return nil
}

// RequestLoan requests a loan for the authenticated borrower.
func (s *Service) RequestLoan(ctx context.Context, amount uint64, duration time.Duration) (models.Loan, error) {
	borrower, err := callerID(ctx)
	if err != nil {
		return models.Loan{}, err
	}

	loan, err := s.engine.RequestLoan(borrower, amount, duration)
	if err != nil {
		s.log.Warnf("Loan request by %s for %d rejected: %v", borrower, amount, err)
		return models.Loan{}, err
	}

	s.log.Infof("Loan %d issued to %s from pool %d: %d due %s", loan.ID, borrower, loan.PoolID, loan.Amount, loan.DueDate.Format(time.RFC3339))
	return loan, nil
}

// RepayLoan settles a loan for the authenticated borrower, reports the
// outcome to the credit bureau and mails a signed receipt. Bureau and mail
// failures are logged but never unwind the committed repayment.
func (s *Service) RepayLoan(ctx context.Context, loanID int64, paidAmount uint64) (RepaymentResult, error) {
	borrower, err := callerID(ctx)
	if err != nil {
		return RepaymentResult{}, err
	}

	receipt, err := s.engine.RepayLoan(loanID, borrower, paidAmount)
	if err != nil {
		return RepaymentResult{}, err
	}
	s.log.Infof("Loan %d repaid by %s: on time %t, refund %d, score %d", loanID, borrower, receipt.OnTime, receipt.Refund, receipt.NewScore)

	if s.bureau != nil {
		if err := s.bureau.ReportOutcome(borrower, receipt.NewScore, receipt.OnTime); err != nil {
			s.log.Errorf("Failed to report outcome for %s to bureau: %v", borrower, err)
		}
	}
	s.mailReceipt(borrower, loanID, receipt)

	return RepaymentResult{
		Receipt:   receipt,
		Signature: utils.SignReceipt(loanID, borrower, paidAmount, receipt.Refund, s.config.HMACSecret),
	}, nil
}

func (s *Service) mailReceipt(borrower string, loanID int64, receipt lending.Receipt) {
	if s.mailer == nil {
		return
	}
	id, err := strconv.ParseInt(borrower, 10, 64)
	if err != nil {
		s.log.Errorf("Skipping receipt mail for loan %d: bad borrower id %q", loanID, borrower)
		return
	}
	user, err := s.users.FindUserByID(id)
	if err != nil {
		s.log.Errorf("Failed to look up borrower %s for receipt mail: %v", borrower, err)
		return
	}
	if err := s.mailer.SendRepaymentReceipt(user.Email, user.Username, loanID, receipt.Loan.Amount, receipt.Refund, receipt.OnTime); err != nil {
		s.log.Errorf("Failed to mail receipt to %s: %v", user.Email, err)
	}
}

// Score returns the authenticated borrower's credit score.
func (s *Service) Score(ctx context.Context) (int, error) {
	borrower, err := callerID(ctx)
	if err != nil {
		return 0, err
	}
	return s.engine.Score(borrower), nil
}

// Loan returns a loan visible to its borrower (admins see all loans).
func (s *Service) Loan(ctx context.Context, loanID int64) (models.Loan, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return models.Loan{}, err
	}
	loan, err := s.engine.Loan(loanID)
	if err != nil {
		return models.Loan{}, err
	}
	role, _ := ctx.Value("role").(string)
	if loan.Borrower != userID && role != models.RoleAdmin {
		return models.Loan{}, lending.ErrLoanNotFound
	}
	return loan, nil
}

// Pools lists all capital pools.
func (s *Service) Pools() []models.RiskPool {
	return s.engine.Pools()
}

func callerID(ctx context.Context) (string, error) {
	userID, ok := ctx.Value("userID").(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}
