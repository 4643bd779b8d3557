package errno

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	switch typed := err.(type) {
	case *Errno:
		return typed.Code, typed.Message
	case Errno:
		return typed.Code, typed.Message
	default:
		return InternalServerError.Code, err.Error()
	}
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrTokenInvalid     = Errno{Code: 10003, Message: "Token invalid"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
	ErrPaused           = Errno{Code: 10005, Message: "Service is paused"}
)

// Validation Errors (10400+)
// 校验失败，状态未被修改，修正输入后可安全重试
var (
	ErrMalformedTransaction = Errno{Code: 10401, Message: "Transaction payload cannot be parsed"}
	ErrUnsupportedChain     = Errno{Code: 10402, Message: "Foreign chain is not registered"}
	ErrInvalidFeeRate       = Errno{Code: 10403, Message: "Fee rate must be >= 1 with non-zero denominator"}
	ErrNotWhitelisted       = Errno{Code: 10404, Message: "Sender or recipient is not on the whitelist"}
)

// External Failures (10500+)
// 外部调用失败，内部状态已回滚，可原样重试
var (
	ErrSigningFailed   = Errno{Code: 10501, Message: "Signing service failed to produce a signature"}
	ErrOracleFailure   = Errno{Code: 10502, Message: "Oracle query failed"}
	ErrPeerUnreachable = Errno{Code: 10503, Message: "Governor peer did not answer"}
)

// Sequence Errors (20100+)
var (
	ErrSequenceNotFound  = Errno{Code: 20101, Message: "Transaction sequence does not exist"}
	ErrSequenceExhausted = Errno{Code: 20102, Message: "Transaction sequence has no pending steps"}
	ErrNotCreator        = Errno{Code: 20103, Message: "Caller is not the sequence creator"}
)

// Ledger / Resource Errors (20200+)
var (
	ErrInsufficientDeposit = Errno{Code: 20201, Message: "Attached deposit is less than the required fee"}
	ErrNoFundedPaymaster   = Errno{Code: 20202, Message: "No paymaster with sufficient balance for this chain"}
	ErrPaymasterNotFound   = Errno{Code: 20203, Message: "Paymaster does not exist"}
	ErrLedgerConflict      = Errno{Code: 20204, Message: "Concurrent ledger update, retry"}
)

// Price Errors (20300+)
var (
	ErrStalePrice     = Errno{Code: 20301, Message: "Price quote is too old"}
	ErrPriceUncertain = Errno{Code: 20302, Message: "Price confidence interval is too large"}
	ErrInvalidPrice   = Errno{Code: 20303, Message: "Reported price is not positive"}
)

// Authorization Errors (20400+)
var (
	ErrNotAuthorized    = Errno{Code: 20401, Message: "Caller is not authorized for this key path"}
	ErrKeyNotFound      = Errno{Code: 20402, Message: "Key path is not registered"}
	ErrTransferPending  = Errno{Code: 20403, Message: "A governorship transfer is already pending for this key path"}
	ErrTransferRejected = Errno{Code: 20404, Message: "Prospective governor declined the transfer"}
)
