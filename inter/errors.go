package inter

import "errors"

// Precondition failures. Every one of them is detected before the engine
// mutates state, so an operation that returns one of these had no effect.
var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrSlippageExceeded      = errors.New("slippage exceeded")
	ErrDeadlineExpired       = errors.New("deadline expired")
	ErrFloorPriceBreach      = errors.New("floor price breach")
	ErrInsufficientReserve   = errors.New("insufficient reserve")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrSellCooldownActive    = errors.New("sell cooldown active")
	ErrSelfAttackRejected    = errors.New("self attack rejected")
	ErrCountryNotDeployed    = errors.New("country not deployed")

	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrCountryExists      = errors.New("country already exists")
	ErrBatchTooLarge      = errors.New("attack batch too large")
	ErrInvalidRules       = errors.New("invalid rules")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrSlippageExceeded, "SlippageExceeded"},
	{ErrDeadlineExpired, "DeadlineExpired"},
	{ErrFloorPriceBreach, "FloorPriceBreach"},
	{ErrInsufficientReserve, "InsufficientReserve"},
	{ErrInsufficientBalance, "InsufficientBalance"},
	{ErrInsufficientAllowance, "InsufficientAllowance"},
	{ErrSellCooldownActive, "SellCooldownActive"},
	{ErrSelfAttackRejected, "SelfAttackRejected"},
	{ErrCountryNotDeployed, "CountryNotDeployed"},
	{ErrArithmeticOverflow, "ArithmeticOverflow"},
	{ErrCountryExists, "CountryExists"},
	{ErrBatchTooLarge, "BatchTooLarge"},
	{ErrInvalidRules, "InvalidRules"},
}

// ErrorKind returns the stable taxonomy name of err ("SellCooldownActive",
// "FloorPriceBreach", ...) so API and CLI layers can surface the specific
// failure. Errors outside the taxonomy map to "Unknown"; nil maps to "".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Unknown"
}
