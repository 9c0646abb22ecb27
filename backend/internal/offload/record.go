package offload

// Record is the host document abstraction the engines operate on.
//
// Implementations need not be safe for concurrent use; the engines serialize
// their own calls.
type Record interface {
	// RecordID identifies the record in blob metadata. May be empty.
	RecordID() string
	// Field returns the in-record value of name, or false if absent.
	Field(name string) (any, bool)
	// SetField sets the in-record value of name.
	SetField(name string, v any)
	// ClearField removes name from the record. It is not the same as setting
	// it to nil.
	ClearField(name string)
	// Refs returns the record's Reference Map.
	Refs() *RefMap
}
