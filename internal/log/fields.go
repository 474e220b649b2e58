package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldClientIP  = "client_ip"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status_code"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldOperation = "operation"

	FieldUserID    = "user_id"
	FieldDayKey    = "day_key"
	FieldAmountML  = "amount_ml"
	FieldTotalML   = "total_ml"
	FieldTargetML  = "target_ml"
	FieldLanguage  = "language"
	FieldEventType = "event_type"
	FieldMessageID = "message_id"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentWebhook   = "webhook"
	ComponentLedger    = "ledger"
	ComponentProjector = "projector"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentLine      = "line"
	ComponentExport    = "export"
)
