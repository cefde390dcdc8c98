package chain

import (
	"testing"
	"time"
)

func TestVerify(t *testing.T) {
	confirmed := func(to string, amount float64) *Transaction {
		return &Transaction{
			Hash:      "abc",
			Confirmed: true,
			Timestamp: 1735689600,
			Transfers: []Transfer{{To: to, Amount: amount}},
		}
	}

	tests := []struct {
		name         string
		tx           *Transaction
		expectedSum  int64
		expectedAddr string
		wantVerified bool
		wantReason   Reason
	}{
		{
			name:         "exact match",
			tx:           confirmed("TXYZaddress", 100.0),
			expectedSum:  100_00,
			expectedAddr: "TXYZaddress",
			wantVerified: true,
		},
		{
			name:         "recipient case insensitive",
			tx:           confirmed("txyzADDRESS", 100.0),
			expectedSum:  100_00,
			expectedAddr: "TXYZaddress",
			wantVerified: true,
		},
		{
			name:         "amount within one percent",
			tx:           confirmed("TXYZaddress", 99.5),
			expectedSum:  100_00,
			expectedAddr: "TXYZaddress",
			wantVerified: true,
		},
		{
			name:         "amount two percent off",
			tx:           confirmed("TXYZaddress", 98.0),
			expectedSum:  100_00,
			expectedAddr: "TXYZaddress",
			wantReason:   ReasonAmountMismatch,
		},
		{
			name:         "wrong recipient",
			tx:           confirmed("TOTHERaddress", 100.0),
			expectedSum:  100_00,
			expectedAddr: "TXYZaddress",
			wantReason:   ReasonRecipientMismatch,
		},
		{
			name: "matching transfer not first",
			tx: &Transaction{
				Hash:      "abc",
				Confirmed: true,
				Timestamp: 1735689600,
				Transfers: []Transfer{
					{To: "TOTHERaddress", Amount: 1.0},
					{To: "TXYZaddress", Amount: 100.0},
				},
			},
			expectedSum:  100_00,
			expectedAddr: "TXYZaddress",
			wantVerified: true,
		},
		{
			name: "only empty recipients",
			tx: &Transaction{
				Hash:      "abc",
				Confirmed: true,
				Transfers: []Transfer{{To: "", Amount: 100.0}},
			},
			expectedSum:  100_00,
			expectedAddr: "TXYZaddress",
			wantReason:   ReasonNoRecipient,
		},
		{
			name: "not confirmed",
			tx: &Transaction{
				Hash:      "abc",
				Transfers: []Transfer{{To: "TXYZaddress", Amount: 100.0}},
			},
			expectedSum:  100_00,
			expectedAddr: "TXYZaddress",
			wantReason:   ReasonNotConfirmed,
		},
		{
			name: "no recipient in payload",
			tx: &Transaction{
				Hash:      "abc",
				Confirmed: true,
			},
			expectedSum:  100_00,
			expectedAddr: "TXYZaddress",
			wantReason:   ReasonNoRecipient,
		},
		{
			name:         "missing transaction",
			tx:           nil,
			expectedSum:  100_00,
			expectedAddr: "TXYZaddress",
			wantReason:   ReasonNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Verify(tt.tx, tt.expectedSum, tt.expectedAddr)
			if res.Verified != tt.wantVerified {
				t.Fatalf("Verified = %v, want %v (reason %s)", res.Verified, tt.wantVerified, res.Reason)
			}
			if !tt.wantVerified && res.Reason != tt.wantReason {
				t.Fatalf("Reason = %s, want %s", res.Reason, tt.wantReason)
			}
		})
	}
}

func TestVerifyResultFields(t *testing.T) {
	tx := &Transaction{
		Hash:      "abc",
		Confirmed: true,
		Timestamp: 1735689600,
		Transfers: []Transfer{{To: "TXYZaddress", Amount: 42.5}},
	}

	res := Verify(tx, 42_50, "TXYZaddress")
	if !res.Verified {
		t.Fatalf("expected verified, reason %s", res.Reason)
	}
	if res.AmountCents != 42_50 {
		t.Fatalf("AmountCents = %d, want 4250", res.AmountCents)
	}
	if res.Recipient != "TXYZaddress" {
		t.Fatalf("Recipient = %s", res.Recipient)
	}
	if !res.ConfirmedAt.Equal(time.Unix(1735689600, 0).UTC()) {
		t.Fatalf("ConfirmedAt = %v", res.ConfirmedAt)
	}
}
