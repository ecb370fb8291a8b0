package constants

import (
	"os"

	"github.com/go-playground/validator/v10"
)

type ContextKey string

const (
	TxKey        ContextKey = "tx"
	PoolKey      ContextKey = "pool"
	LoggerKey    ContextKey = "logger"
	RequestIDKey ContextKey = "request_id"
	OperatorKey  ContextKey = "operator"
)

const (
	DirPermissions  os.FileMode = 0o750
	FilePermissions os.FileMode = 0o640
)

var Validate = validator.New(validator.WithRequiredStructEnabled())
