package messaging

import "billiard-hall/internal/pkg/errs"

var (
	ErrNoHandlerRegistered = errs.Define(errs.KindConfiguration, "NoHandlerRegistered", "no handler registered for command kind")
	ErrHandlerConflict     = errs.Define(errs.KindConfiguration, "HandlerConflict", "more than one handler registered for command kind")
	ErrRegistrySealed      = errs.Define(errs.KindConfiguration, "RegistrySealed", "registry is sealed")
	ErrRegistryNotSealed   = errs.Define(errs.KindConfiguration, "RegistryNotSealed", "registry must be sealed before the bus starts")

	ErrBusNotStarted     = errs.Define(errs.KindInfrastructure, "BusNotStarted", "bus is not started")
	ErrBusClosed         = errs.Define(errs.KindInfrastructure, "BusClosed", "bus is closed")
	ErrUnknownSubscriber = errs.Define(errs.KindValidation, "UnknownSubscriber", "no such subscriber")
	ErrDeliveryAbandoned = errs.Define(errs.KindInfrastructure, "DeliveryAbandoned", "event was neither handled nor parked")

	ErrInvalidEnvelope      = errs.Define(errs.KindValidation, "InvalidEnvelope", "invalid message envelope")
	ErrMissingSchemaVersion = errs.Define(errs.KindValidation, "MissingSchemaVersion", "event has no schema version")
	ErrUnexpectedPayload    = errs.Define(errs.KindValidation, "UnexpectedPayload", "unexpected command payload type")
)
