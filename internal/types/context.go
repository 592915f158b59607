package types

type ContextKey string

const (
	CtxDBTransaction ContextKey = "ctx_db_transaction"
	CtxRequestID     ContextKey = "ctx_request_id"
)

const (
	HeaderRequestID = "X-Request-ID"
)
