package messaging

// Subject constants for relay notifications.
// Follow the pattern: {domain}.{action}.{resource}
const (
	SubjectRelayExecuteCompleted = "relay.execute.completed" // A fetch/decrypt/forward run finished
	SubjectRelayClearCompleted   = "relay.clear.completed"   // A webhook clear finished
)

// Header names attached to relay notifications.
const (
	HeaderRequestID = "Request-Id"
	HeaderOutcome   = "Relay-Outcome"
)

// RelaySubject returns the completion subject for an operation name.
// Example: relay.execute.completed
func RelaySubject(operation string) string {
	return "relay." + operation + ".completed"
}
