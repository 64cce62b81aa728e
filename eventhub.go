package eventhub

import (
	hubcommand "github.com/julizen/eventhub/command"
	"github.com/julizen/eventhub/core"
	hubquery "github.com/julizen/eventhub/query"
)

type Config = core.Config
type ProcessingConfig = core.ProcessingConfig
type SweepConfig = core.SweepConfig
type DispatchConfig = core.DispatchConfig

type Option = core.Option

type Service = core.Service

type Event = core.Event
type Status = core.Status
type EventFilter = core.EventFilter

type SubmitRequest = core.SubmitRequest
type SubmitResult = core.SubmitResult
type HandlerResult = core.HandlerResult
type SweepStats = core.SweepStats

type Handler = core.Handler
type HandlerFunc = core.HandlerFunc
type EventStore = core.EventStore
type Dispatcher = core.Dispatcher
type Registry = core.Registry
type RetryPolicy = core.RetryPolicy

type HandlerError = core.HandlerError

const (
	StatusPending    = core.StatusPending
	StatusProcessing = core.StatusProcessing
	StatusSuccess    = core.StatusSuccess
	StatusFailed     = core.StatusFailed
	StatusDead       = core.StatusDead
)

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithEventStore        = core.WithEventStore
	WithRegistry          = core.WithRegistry
	WithDispatcher        = core.WithDispatcher
	WithRetryPolicy       = core.WithRetryPolicy
	WithClock             = core.WithClock
)

type SubmitMessage = hubcommand.SubmitMessage
type RetryMessage = hubcommand.RetryMessage
type SweepMessage = hubcommand.SweepMessage
type ReclaimMessage = hubcommand.ReclaimMessage

type GetEventMessage = hubquery.GetEventMessage
type ListEventsMessage = hubquery.ListEventsMessage

var ErrEventNotFound = core.ErrEventNotFound
var ErrNotRetriable = core.ErrNotRetriable

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	return core.NewService(cfg, options...)
}
