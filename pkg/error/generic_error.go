package error

// GenericError is implemented by every error the REST layer can render
// directly into a response envelope.
type GenericError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}
