package domain

import "strings"

// Method is the payment method chosen on the first wizard step.
type Method string

const (
	MethodMobileMoney Method = "mobile_money"
	MethodCard        Method = "card"
)

func (m Method) RequiresOperator() bool {
	return m == MethodMobileMoney
}

// Operator is a mobile-money provider the user pays through. Card
// payments route through the pseudo-operator OperatorCard so the
// gateway branch stays data-driven.
type Operator string

const (
	OperatorWave        Operator = "wave"
	OperatorOrangeMoney Operator = "orange_money"
	OperatorFreeMoney   Operator = "free_money"
	OperatorEMoney      Operator = "e_money"
	OperatorCard        Operator = "card"
)

// OperatorConfig maps an operator to its gateway service code and the
// two capability flags that drive wizard branching. Static, never
// mutated at runtime.
type OperatorConfig struct {
	ServiceCode         string
	RequiresOneTimeCode bool
	UsesRedirectFlow    bool
}

var operatorCatalog = map[Operator]OperatorConfig{
	OperatorWave:        {ServiceCode: "WAVE_SN_CASHIN", UsesRedirectFlow: true},
	OperatorOrangeMoney: {ServiceCode: "OM_SN_CASHIN", RequiresOneTimeCode: true},
	OperatorFreeMoney:   {ServiceCode: "FM_SN_CASHIN"},
	OperatorEMoney:      {ServiceCode: "EM_SN_CASHIN"},
	OperatorCard:        {ServiceCode: "CARD_SN_CASHIN", UsesRedirectFlow: true},
}

// LookupOperator returns the static config for an operator. Unreachable
// from a closed selection UI, but never fails silently.
func LookupOperator(op Operator) (OperatorConfig, error) {
	cfg, ok := operatorCatalog[op]
	if !ok {
		return OperatorConfig{}, ErrUnknownOperator
	}
	return cfg, nil
}

// Operators lists the selectable mobile-money operators.
func Operators() []Operator {
	return []Operator{OperatorWave, OperatorOrangeMoney, OperatorFreeMoney, OperatorEMoney}
}

// NormalizeRecipientNumber converts a phone number to the leading-zero
// local format the gateway expects: separators stripped, the 221
// country prefix removed, and a leading zero ensured.
func NormalizeRecipientNumber(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n := b.String()
	if strings.HasPrefix(n, "221") && len(n) > 9 {
		n = n[3:]
	}
	if n != "" && !strings.HasPrefix(n, "0") {
		n = "0" + n
	}
	return n
}

// ValidRecipientNumber reports whether a normalized number looks like a
// local subscriber number (leading zero plus nine digits).
func ValidRecipientNumber(n string) bool {
	if len(n) != 10 || n[0] != '0' {
		return false
	}
	for i := 1; i < len(n); i++ {
		if n[i] < '0' || n[i] > '9' {
			return false
		}
	}
	return true
}
