package types

import "strings"

// BankDetails identifies the payout destination of a withdrawal.
type BankDetails struct {
	AccountName   string `json:"account_name" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required"`
	BankCode      string `json:"bank_code" validate:"required"`
	BankName      string `json:"bank_name,omitempty"`
}

// Masked returns a copy safe to log or return to clients.
func (b BankDetails) Masked() BankDetails {
	masked := b
	number := strings.TrimSpace(b.AccountNumber)
	if len(number) > 4 {
		masked.AccountNumber = strings.Repeat("*", len(number)-4) + number[len(number)-4:]
	}
	return masked
}
