package iocli

//go:generate moq -out io_mock.go . IO

// IO abstracts terminal interaction so commands stay testable.
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
	// ReadConfirm asks a yes/no question; empty input yields defaultYes.
	ReadConfirm(prompt string, defaultYes bool) (bool, error)
	Write(p []byte) (n int, err error)
}
