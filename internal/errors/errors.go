package errors

import "sync"

var (
	defaultHandler *ErrorHandler
	once           sync.Once
	defaultLogDir  string
)

// SetLogDir sets where the default handler writes its structured log. It must
// be called before the first HandleError to take effect.
func SetLogDir(dir string) {
	defaultLogDir = dir
}

func GetDefaultHandler() (*ErrorHandler, error) {
	var err error
	once.Do(func() {
		defaultHandler, err = NewErrorHandler(defaultLogDir)
	})
	return defaultHandler, err
}

// HandleError reports err through the default handler. When the handler
// cannot be created the error is still printed.
func HandleError(err error) {
	handler, handlerErr := GetDefaultHandler()
	if handlerErr != nil || handler == nil {
		newConsoleOnlyHandler().Handle(err)
		return
	}
	handler.Handle(err)
}

// resetDefaultHandler resets the singleton for testing purposes
func resetDefaultHandler() {
	defaultHandler = nil
	defaultLogDir = ""
	once = sync.Once{}
}
