package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	HubErrorBadInput            = "EVENTHUB_BAD_INPUT"
	HubErrorDuplicateSubmission = "EVENTHUB_DUPLICATE_SUBMISSION"
	HubErrorEventNotFound       = "EVENTHUB_EVENT_NOT_FOUND"
	HubErrorNotRetriable        = "EVENTHUB_NOT_RETRIABLE"
	HubErrorNoHandler           = "EVENTHUB_NO_HANDLER"
	HubErrorHandlerFailed       = "EVENTHUB_HANDLER_FAILED"
	HubErrorInternal            = "EVENTHUB_INTERNAL_ERROR"
)

var (
	ErrEventNotFound = errors.New("core: event not found")
	ErrNotRetriable  = errors.New("core: event is not in a retriable status")
)

// HandlerError is the typed failure a handler raises when an upstream call
// fails. UpstreamBody, when present, carries the machine-readable error body
// the third-party API returned; the processor prefers it over Message when
// recording the event's error detail.
type HandlerError struct {
	Message      string
	StatusCode   int
	UpstreamBody map[string]any
}

func (e *HandlerError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Detail renders the failure for the event's error column, serializing the
// upstream body when one was captured.
func (e *HandlerError) Detail() string {
	if e == nil {
		return ""
	}
	if len(e.UpstreamBody) > 0 {
		if encoded, err := json.Marshal(e.UpstreamBody); err == nil {
			return string(encoded)
		}
	}
	return e.Message
}

// NewHandlerError builds a handler failure without upstream detail.
func NewHandlerError(message string) *HandlerError {
	return &HandlerError{Message: strings.TrimSpace(message)}
}

// FailureDetail extracts the best available diagnostic string from a handler
// failure: the serialized upstream body when the error carries one, otherwise
// the error message.
func FailureDetail(err error) string {
	if err == nil {
		return ""
	}
	var handlerErr *HandlerError
	if errors.As(err, &handlerErr) {
		return handlerErr.Detail()
	}
	return err.Error()
}

func hubErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureHubErrorEnvelope(richErr)
	}

	if errors.Is(err, ErrEventNotFound) {
		return newHubError(err.Error(), goerrors.CategoryNotFound, HubErrorEventNotFound)
	}
	if errors.Is(err, ErrNotRetriable) {
		return newHubError(err.Error(), goerrors.CategoryConflict, HubErrorNotRetriable)
	}
	var handlerErr *HandlerError
	if errors.As(err, &handlerErr) {
		return newHubError(handlerErr.Detail(), goerrors.CategoryExternal, HubErrorHandlerFailed)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "no handler"):
		return newHubError(err.Error(), goerrors.CategoryNotFound, HubErrorNoHandler)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "unknown event status"):
		return newHubError(err.Error(), goerrors.CategoryBadInput, HubErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureHubErrorEnvelope(mapped)
}

func newHubError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureHubErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureHubErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = hubHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultHubTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultHubTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return HubErrorBadInput
	case goerrors.CategoryNotFound:
		return HubErrorEventNotFound
	case goerrors.CategoryConflict:
		return HubErrorNotRetriable
	case goerrors.CategoryExternal, goerrors.CategoryOperation:
		return HubErrorHandlerFailed
	default:
		return HubErrorInternal
	}
}

func hubHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
