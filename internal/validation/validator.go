// Package validation checks inbound order and trade requests before
// they reach the service layer. Raw string fields are validated here;
// business rules (balances, asset existence) live further down.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	return "invalid request"
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{1,12}$`)

// ValidateOrderRequest checks a limit order submission. Exactly one of
// quantity and amount must be set: quantity sizes the order in units of
// the asset, amount sizes it by notional spend resolved at execution.
func ValidateOrderRequest(symbol, side, quantity, amount, targetPrice string) ValidationErrors {
	var errs ValidationErrors

	if err := checkSymbol(symbol); err != nil {
		errs = append(errs, FieldError{Field: "symbol", Message: err.Error()})
	}

	side = strings.ToUpper(strings.TrimSpace(side))
	if side != "BUY" && side != "SELL" {
		errs = append(errs, FieldError{Field: "side", Message: "side must be BUY or SELL"})
	}

	qty := strings.TrimSpace(quantity)
	amt := strings.TrimSpace(amount)
	switch {
	case qty == "" && amt == "":
		errs = append(errs, FieldError{Field: "quantity", Message: "either quantity or amount is required"})
	case qty != "" && amt != "":
		errs = append(errs, FieldError{Field: "quantity", Message: "quantity and amount are mutually exclusive"})
	case qty != "":
		if _, err := parsePositive("quantity", qty); err != nil {
			errs = append(errs, FieldError{Field: "quantity", Message: err.Error()})
		}
	default:
		if _, err := parsePositive("amount", amt); err != nil {
			errs = append(errs, FieldError{Field: "amount", Message: err.Error()})
		}
	}

	if _, err := parsePositive("target_price", targetPrice); err != nil {
		errs = append(errs, FieldError{Field: "target_price", Message: err.Error()})
	}

	return errs
}

// ValidateTradeRequest checks an immediate market trade, which always
// sizes by quantity.
func ValidateTradeRequest(symbol, side, quantity string) ValidationErrors {
	var errs ValidationErrors

	if err := checkSymbol(symbol); err != nil {
		errs = append(errs, FieldError{Field: "symbol", Message: err.Error()})
	}

	side = strings.ToUpper(strings.TrimSpace(side))
	if side != "BUY" && side != "SELL" {
		errs = append(errs, FieldError{Field: "side", Message: "side must be BUY or SELL"})
	}

	if _, err := parsePositive("quantity", quantity); err != nil {
		errs = append(errs, FieldError{Field: "quantity", Message: err.Error()})
	}

	return errs
}

func checkSymbol(symbol string) error {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if !symbolPattern.MatchString(strings.ToUpper(symbol)) {
		return fmt.Errorf("symbol must be 1-12 alphanumeric characters")
	}
	return nil
}

func parsePositive(field, raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("%s is required", field)
	}
	val, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal", field)
	}
	if val.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("%s must be positive", field)
	}
	return val, nil
}

func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
