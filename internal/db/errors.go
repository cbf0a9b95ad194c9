package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
)

// Op names used for error context.
const (
	OpGet              = "GET"
	OpSet              = "SET"
	OpIncrBy           = "INCRBY"
	OpExpire           = "EXPIRE"
	OpLock             = "SET NX"
	OpUnlock           = "UNLOCK"
	OpCreateCollection = "CreateCollection"
	OpDeleteCollection = "DeleteCollection"
	OpCollectionExists = "CollectionExists"
	OpUpsert           = "Upsert"
	OpQuery            = "Query"
	OpCount            = "Count"
	OpHealth           = "HealthCheck"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
