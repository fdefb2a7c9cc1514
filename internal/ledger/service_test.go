package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/meshcraft/backend/internal/models"
)

// Validation failures must reject before any repository call, so a nil
// repository is safe here.

func TestAddCreditsRejectsNonPositiveAmounts(t *testing.T) {
	svc := NewService(nil)
	for _, amount := range []int{0, -1, -100} {
		_, err := svc.AddCredits(context.Background(), uuid.New(), amount, models.TxTypeReferral, "", nil)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("amount %d: err = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestDeductCreditsRejectsNonPositiveAmounts(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.DeductCredits(context.Background(), uuid.New(), -5, models.TxTypeSpend, "", nil)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestUnknownTxTypeRejected(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.AddCredits(context.Background(), uuid.New(), 5, "gift", "", nil)
	if !errors.Is(err, ErrInvalidTxType) {
		t.Errorf("err = %v, want ErrInvalidTxType", err)
	}
	_, err = svc.DeductCreditsTx(context.Background(), nil, uuid.New(), 5, "withdrawal", "", nil)
	if !errors.Is(err, ErrInvalidTxType) {
		t.Errorf("Tx variant err = %v, want ErrInvalidTxType", err)
	}
}

func TestClosedTxTypeSetAccepted(t *testing.T) {
	for _, txType := range []string{
		models.TxTypePurchase, models.TxTypeReferral, models.TxTypeSocialShare,
		models.TxTypeGenerationRefund, models.TxTypeAdminAdjustment, models.TxTypeSpend,
	} {
		if !models.ValidTxType(txType) {
			t.Errorf("%q should be a valid tx type", txType)
		}
	}
	if models.ValidTxType("bonus") {
		t.Error("unknown tx type accepted")
	}
}
