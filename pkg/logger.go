package ageing

type Logger interface {
	Info(message string, module string)
	Error(string)
}

type noLogger struct{}

func (noLogger) Info(string, string) {}
func (noLogger) Error(string)        {}

var logger Logger = noLogger{}

func SetLogger(l Logger) {
	logger = l
}
