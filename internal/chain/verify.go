package chain

import (
	"math"
	"strings"
	"time"
)

// Reason — код причины отказа в верификации.
type Reason string

const (
	ReasonNotFound          Reason = "not_found"
	ReasonNotConfirmed      Reason = "not_confirmed"
	ReasonAmountMismatch    Reason = "amount_mismatch"
	ReasonRecipientMismatch Reason = "recipient_mismatch"
	ReasonNoRecipient       Reason = "no_recipient"
)

// amountTolerancePercent — допустимое отклонение суммы перевода,
// покрывает округление комиссий.
const amountTolerancePercent = 1.0

// VerifyResult — результат проверки перевода. Проверка только
// подтверждающая: переход счёта в «оплачен» выполняется отдельным
// явным шагом подтверждения.
type VerifyResult struct {
	Verified    bool
	Reason      Reason
	AmountCents int64
	Recipient   string
	ConfirmedAt time.Time
}

// Verify сверяет транзакцию с ожидаемой суммой в копейках и адресом
// получателя. Транзакция может содержать несколько переводов —
// сверяется тот, что адресован ожидаемому получателю. Каждая причина
// отказа возвращается отдельным кодом.
func Verify(tx *Transaction, expectedCents int64, expectedAddress string) VerifyResult {
	if tx == nil {
		return VerifyResult{Reason: ReasonNotFound}
	}

	if !tx.Confirmed {
		return VerifyResult{Reason: ReasonNotConfirmed}
	}

	var transfer *Transfer
	hasRecipient := false
	for i := range tx.Transfers {
		if tx.Transfers[i].To == "" {
			continue
		}
		hasRecipient = true
		if strings.EqualFold(tx.Transfers[i].To, expectedAddress) {
			transfer = &tx.Transfers[i]
			break
		}
	}
	if !hasRecipient {
		return VerifyResult{Reason: ReasonNoRecipient}
	}
	if transfer == nil {
		return VerifyResult{Reason: ReasonRecipientMismatch}
	}

	amountCents := int64(math.Round(transfer.Amount * 100))
	expected := float64(expectedCents)
	if math.Abs(float64(amountCents)-expected) > expected*amountTolerancePercent/100 {
		return VerifyResult{Reason: ReasonAmountMismatch}
	}

	return VerifyResult{
		Verified:    true,
		AmountCents: amountCents,
		Recipient:   transfer.To,
		ConfirmedAt: time.Unix(tx.Timestamp, 0).UTC(),
	}
}
