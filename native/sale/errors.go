package sale

import "errors"

var (
	errNilState             = errors.New("sale engine: state not configured")
	errNilLedger            = errors.New("sale engine: ledger not initialised")
	errFeedNotConfigured    = errors.New("sale engine: price feed not configured")
	errInvalidAmount        = errors.New("sale engine: amount must be positive")
	errInvalidCurrency      = errors.New("sale engine: unsupported payment currency")
	errInvalidBuyer         = errors.New("sale engine: buyer address required")
	errSaleClosed           = errors.New("sale engine: sale is closed")
	errBelowMinimum         = errors.New("sale engine: payment below minimum purchase")
	errZeroUnits            = errors.New("sale engine: payment converts to zero units")
	errCapExceeded          = errors.New("sale engine: purchase exceeds sale cap")
	errInsufficientUnits    = errors.New("sale engine: token inventory insufficient")
	errInsufficientBalance  = errors.New("sale engine: insufficient payment balance")
	errStageOutOfRange      = errors.New("sale engine: stage index out of range")
	errInvalidPrice         = errors.New("sale engine: stage price must be positive")
	errLedgerInventoryDrift = errors.New("sale engine: units sold diverges from stage consumption")
)
