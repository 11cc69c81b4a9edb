package logging

import (
	"log/slog"
	"time"
)

// Field names shared by every LineHawk log line.
const (
	FieldService   = "service"
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldEventID   = "event_id"
	FieldMachineID = "machine_id"
	FieldFactoryID = "factory_id"
	FieldLineID    = "line_id"
	FieldOutcome   = "outcome"
	FieldReason    = "reason"
	FieldBatchSize = "batch_size"
)

func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration reports d in whole milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns an error attribute; a nil error renders as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

func MachineID(id string) slog.Attr {
	return slog.String(FieldMachineID, id)
}

func FactoryID(id string) slog.Attr {
	return slog.String(FieldFactoryID, id)
}

func LineID(id string) slog.Attr {
	return slog.String(FieldLineID, id)
}

func Outcome(outcome string) slog.Attr {
	return slog.String(FieldOutcome, outcome)
}

func Reason(reason string) slog.Attr {
	return slog.String(FieldReason, reason)
}

func BatchSize(n int) slog.Attr {
	return slog.Int(FieldBatchSize, n)
}
