package e

import "fmt"

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Ошибки конфигурации
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")

	// Состояние моделей. На границе use case превращаются в пустой результат
	ErrNotTrained    = fmt.Errorf("model is not trained")
	ErrUnknownEntity = fmt.Errorf("entity is absent from the current snapshot")

	// Ошибки обучения
	ErrTrainingInProgress   = fmt.Errorf("training in progress")
	ErrUpstreamUnavailable  = fmt.Errorf("data source unavailable")
	ErrEncoderFailure       = fmt.Errorf("text encoder failure")
	ErrIncompatibleSnapshot = fmt.Errorf("incompatible model snapshot")
	ErrDimensionMismatch    = fmt.Errorf("vector dimension mismatch")

	// Ошибки outbox
	ErrMalformedEvent = fmt.Errorf("malformed outbox event")

	// Ошибки кэша
	ErrCacheMiss = fmt.Errorf("cache miss")

	// 400 Bad Request
	ErrStatusBadRequest = fmt.Errorf("bad request")
	ErrInvalidMode      = fmt.Errorf("invalid method")
	ErrInvalidTopK      = fmt.Errorf("top_k must be between 1 and 100")
	ErrInvalidID        = fmt.Errorf("id must be a positive integer")
	ErrEmptyQuery       = fmt.Errorf("query is required")
	ErrInvalidModel     = fmt.Errorf("unknown model family")

	// 500 Internal Server Error
	ErrInternalServerError = fmt.Errorf("internal server error")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
