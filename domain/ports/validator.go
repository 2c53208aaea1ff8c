package ports

// DocumentValidator validates a raw JSON document, e.g. settings against a schema.
type DocumentValidator interface {
	Validate(document []byte) error
}
