package treasury

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/poolfund/lending-service/internal/models"
	"github.com/poolfund/lending-service/internal/utils"
)

// DisbursementStore journals outgoing payments.
type DisbursementStore interface {
	CreateDisbursement(d *models.Disbursement) error
}

// Treasury is the outgoing fund-transfer channel. Every payout and refund is
// journaled with a signed reference; a failed journal entry is a failed
// transfer, which the engine treats as fatal to its transaction.
type Treasury struct {
	store      DisbursementStore
	hmacSecret string
	log        *logrus.Logger
}

// NewTreasury initializes a new treasury
func NewTreasury(store DisbursementStore, hmacSecret string, log *logrus.Logger) *Treasury {
	return &Treasury{store: store, hmacSecret: hmacSecret, log: log}
}

// Transfer pays out amount to the recipient, journaling the disbursement.
func (t *Treasury) Transfer(to string, amount uint64, kind string) error {
	reference, err := utils.GenerateReference("PF", 16)
	if err != nil {
		return fmt.Errorf("failed to generate reference: %w", err)
	}

	d := &models.Disbursement{
		Reference: reference,
		Recipient: to,
		Amount:    amount,
		Kind:      kind,
		HMAC:      utils.SignDisbursement(reference, to, amount, t.hmacSecret),
	}
	if err := t.store.CreateDisbursement(d); err != nil {
		t.log.Errorf("Disbursement %s to %s failed: %v", reference, to, err)
		return err
	}

	t.log.Infof("Disbursed %d to %s (%s, ref %s)", amount, to, kind, reference)
	return nil
}
