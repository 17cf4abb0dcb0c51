package report

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var brl = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders an amount in Brazilian reais, e.g. "R$ 1.234,56".
func FormatBRL(amount decimal.Decimal) string {
	return brl.Sprintf("R$ %.2f", amount.Round(2).InexactFloat64())
}
