package log

import (
	"io"

	"go.uber.org/zap"
)

// HTTPAccessWriter returns a writer that emits each written line as an info-level
// entry on the "http" named logger. It is meant for gorilla/handlers access logging.
func HTTPAccessWriter() io.Writer {
	return zap.NewStdLog(GetZapLogger().Named("http")).Writer()
}
