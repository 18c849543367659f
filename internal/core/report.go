package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency labels amounts in formatted reports.
const DefaultCurrency = "R"

// Report is the input of the monthly summary text.
type Report struct {
	Spent    decimal.Decimal
	MinGoal  decimal.Decimal
	MaxGoal  decimal.Decimal
	Currency string
}

// Remaining is max minus spent and goes negative when overspent.
func (r Report) Remaining() decimal.Decimal {
	return r.MaxGoal.Sub(r.Spent)
}

// MinimumMet reports spent >= min.
func (r Report) MinimumMet() bool {
	return r.Spent.GreaterThanOrEqual(r.MinGoal)
}

func (r Report) amount(d decimal.Decimal) string {
	cur := r.Currency
	if cur == "" {
		cur = DefaultCurrency
	}
	return FormatAmount(cur, d)
}

// FormatReport renders the plain-text monthly budget summary. The optional
// breakdown is appended one category per line.
func FormatReport(r Report, breakdown []CategoryAmount) string {
	var b strings.Builder
	b.WriteString("Monthly Budget Overview:\n\n")
	fmt.Fprintf(&b, "Your overall monthly budget is %s\n", r.amount(r.MaxGoal))
	fmt.Fprintf(&b, "You spent a total of %s this month\n", r.amount(r.Spent))
	fmt.Fprintf(&b, "Your remaining overall budget is %s\n\n", r.amount(r.Remaining()))
	if r.MinimumMet() {
		fmt.Fprintf(&b, "You have reached your minimum monthly goal of %s\n", r.amount(r.MinGoal))
	} else {
		fmt.Fprintf(&b, "You have not yet reached your minimum monthly goal of %s\n", r.amount(r.MinGoal))
	}
	if len(breakdown) > 0 {
		b.WriteString("\nSpend by category:\n")
		for _, c := range breakdown {
			fmt.Fprintf(&b, "- %s: %s\n", c.Name, r.amount(c.Amount))
		}
	}
	return b.String()
}

// EmailSubject is the subject line of the spend breakdown message.
func EmailSubject(month string) string {
	return "Your Monthly Spend Breakdown - " + strings.ToUpper(month)
}

// EmailBody wraps a formatted report for delivery.
func EmailBody(report string) string {
	return "Dear User,\n\nHere's your spend breakdown for the past month:\n\n" + report + "\n\nThanks for using our app!"
}
