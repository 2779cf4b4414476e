package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBankDetailsMasked(t *testing.T) {
	details := BankDetails{AccountName: "Ada", AccountNumber: "0123456789", BankCode: "058"}
	masked := details.Masked()
	assert.Equal(t, "******6789", masked.AccountNumber)
	assert.Equal(t, "0123456789", details.AccountNumber)

	short := BankDetails{AccountNumber: "12"}.Masked()
	assert.Equal(t, "12", short.AccountNumber)
}

func TestLineItemsTotalCents(t *testing.T) {
	items := LineItems{{TotalCents: 1200}, {TotalCents: 800}}
	assert.Equal(t, int64(2000), items.TotalCents())
	assert.Zero(t, LineItems(nil).TotalCents())
}
