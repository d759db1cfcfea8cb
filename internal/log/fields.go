package log

// Field names shared by every component, so log queries need one vocabulary.
const (
	FieldComponent      = "component"
	FieldRequestID      = "request_id"
	FieldClientIP       = "client_ip"
	FieldPath           = "path"
	FieldError          = "error"
	FieldOperation      = "operation"
	FieldUserID         = "user_id"
	FieldReferenceMonth = "reference_month"
	FieldTxType         = "transaction_type"
	FieldPayment        = "payment_type"
	FieldAmount         = "amount"
	FieldRecords        = "records"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentAuth      = "auth"
	ComponentEvents    = "events"
	ComponentStorage   = "storage"
	ComponentWorker    = "worker"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
)

const (
	OpCreate    = "create"
	OpRead      = "read"
	OpDelete    = "delete"
	OpList      = "list"
	OpParse     = "parse"
	OpSubscribe = "subscribe"
	OpShutdown  = "shutdown"
)

// LogFields collects attributes for one log line.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError records err's message; nil is ignored.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithUser(uid string) LogFields {
	f[FieldUserID] = uid
	return f
}

// WithTransaction describes a ledger write. Descriptions are user text and
// stay out of the logs.
func (f LogFields) WithTransaction(txType, payment, amount, referenceMonth string, records int) LogFields {
	f[FieldTxType] = txType
	if payment != "" {
		f[FieldPayment] = payment
	}
	f[FieldAmount] = amount
	f[FieldReferenceMonth] = referenceMonth
	f[FieldRecords] = records
	return f
}

// Args flattens the fields into slog key/value pairs.
func (f LogFields) Args() []any {
	args := make([]any, 0, len(f)*2)
	for k, v := range f {
		args = append(args, k, v)
	}
	return args
}
