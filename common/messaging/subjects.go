package messaging

// Subjects follow {product}.{resource}.{action}.
const (
	// Published after a record is created for a new business key.
	SubjectRecordsInserted = "linehawk.records.inserted"

	// Published after a newer write overwrote an existing record.
	SubjectRecordsUpdated = "linehawk.records.updated"

	// Dead-lettered events; the reason is appended (ingest.dlq.storage_failure).
	SubjectIngestDLQPrefix = "ingest.dlq"
)

// DLQSubject returns the dead-letter subject for reason.
// Example: ingest.dlq.storage_failure
func DLQSubject(reason string) string {
	return SubjectIngestDLQPrefix + "." + reason
}
