package errs

// Cross-cutting sentinel errors shared by the usecase and infra layers.
// Aggregate-specific errors live next to their aggregate.
var (
	ErrNotFound = Define(KindValidation, "NotFound", "entity not found")

	// Concurrency
	ErrContention = Define(KindContention, "Contention", "aggregate is busy, retry later")

	// Idempotency
	ErrCorrelationIDRequired = Define(KindValidation, "CorrelationIdRequired", "correlation id required")
	ErrCorrelationReused     = Define(KindValidation, "CorrelationIdReused", "correlation id reused with a different command")

	// Operation errors
	ErrDatabaseOperationFailed = Define(KindInfrastructure, "DatabaseOperationFailed", "database operation failed")
	ErrConcurrentUpdate        = Define(KindContention, "ConcurrentUpdate", "aggregate was modified concurrently")
)
