package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Service is the event hub: it owns the durable event record, the claim
// protocol, topic routing and the sweep/retry entry points. Collaborators
// (webhook endpoints, cron triggers, admin actions) only ever touch events
// through it.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	store             EventStore
	registry          Registry
	dispatcher        Dispatcher
	retryPolicy       RetryPolicy
	now               func() time.Time
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := resolveLogger(builder)

	if builder.errorFactory == nil {
		builder.errorFactory = defaultServiceBuilder(cfg).errorFactory
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewTopicRegistry()
	}
	if builder.now == nil {
		builder.now = func() time.Time {
			return time.Now().UTC()
		}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.eventStore == nil && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			storeProvider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				builder.eventStore = storeProvider.EventStore()
			}
		} else if storeProvider, ok := builder.repositoryFactory.(StoreProvider); ok {
			builder.eventStore = storeProvider.EventStore()
		}
	}
	if builder.eventStore == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: event store is required"))
	}
	if builder.retryPolicy == nil {
		builder.retryPolicy = ExponentialBackoffPolicy{}
	}

	service := &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		store:             builder.eventStore,
		registry:          builder.registry,
		dispatcher:        builder.dispatcher,
		retryPolicy:       builder.retryPolicy,
		now:               builder.now,
	}
	return service, nil
}

// Setup builds a service with a default worker dispatcher attached when no
// dispatcher was injected.
func Setup(cfg Config, options ...Option) (*Service, error) {
	service, err := NewService(cfg, options...)
	if err != nil {
		return nil, err
	}
	if service.dispatcher == nil {
		service.dispatcher = NewWorkerDispatcher(
			service.ProcessEvent,
			service.config.Dispatch,
			service.logger,
		)
	}
	return service, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Registry() Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Service) Dispatcher() Dispatcher {
	if s == nil {
		return nil
	}
	return s.dispatcher
}

// RegisterHandler binds a topic to a handler. Integrations call this once at
// process start.
func (s *Service) RegisterHandler(topic string, handler Handler) error {
	if s == nil || s.registry == nil {
		return fmt.Errorf("core: service registry is not configured")
	}
	return s.registry.Register(topic, handler)
}

// Submit durably records an inbound occurrence and schedules its processing.
// A duplicate (tenant, idempotency key) pair is success-equivalent: the
// already-recorded event is acknowledged and no new row is created.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	startedAt := s.clock()()
	result, err := s.submit(ctx, req)
	s.observeOperation(ctx, startedAt, "submit", err, map[string]any{
		"tenant_id": req.TenantID,
		"source":    req.Source,
		"topic":     req.Topic,
		"event_id":  result.EventID,
		"duplicate": result.Duplicate,
		"trace_id":  req.TraceID,
	})
	if err != nil {
		return SubmitResult{}, s.mapError(err)
	}
	return result, nil
}

func (s *Service) submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if s == nil || s.store == nil {
		return SubmitResult{}, fmt.Errorf("core: event store is not configured")
	}
	req.TenantID = strings.TrimSpace(req.TenantID)
	req.Source = strings.TrimSpace(req.Source)
	req.Topic = strings.TrimSpace(req.Topic)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	req.DedupHash = strings.TrimSpace(req.DedupHash)
	req.TraceID = strings.TrimSpace(req.TraceID)
	if err := req.Validate(); err != nil {
		return SubmitResult{}, err
	}

	event, duplicate, err := s.store.Create(ctx, req)
	if err != nil {
		return SubmitResult{}, err
	}
	if duplicate {
		return SubmitResult{
			EventID:   event.ID,
			Status:    event.Status,
			Duplicate: true,
		}, nil
	}

	if s.dispatcher != nil {
		s.dispatcher.Enqueue(ctx, event.ID)
	}
	return SubmitResult{
		EventID: event.ID,
		Status:  event.Status,
	}, nil
}

// Retry resets a failed event to pending and runs the processor inline. It
// fails with NotRetriable when the event already reached a status the state
// machine does not allow retrying from.
func (s *Service) Retry(ctx context.Context, tenantID string, eventID string) error {
	startedAt := s.clock()()
	err := s.retry(ctx, tenantID, eventID)
	s.observeOperation(ctx, startedAt, "retry", err, map[string]any{
		"tenant_id": tenantID,
		"event_id":  eventID,
	})
	if err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *Service) retry(ctx context.Context, tenantID string, eventID string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("core: event store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	eventID = strings.TrimSpace(eventID)
	if tenantID == "" {
		return fmt.Errorf("core: tenant id is required")
	}
	if eventID == "" {
		return fmt.Errorf("core: event id is required")
	}

	event, err := s.store.Get(ctx, tenantID, eventID)
	if err != nil {
		return err
	}
	if !event.Status.IsRetriable() {
		return fmt.Errorf("%w: status is %s", ErrNotRetriable, event.Status)
	}
	if event.Status == StatusFailed {
		if err := s.store.MarkPending(ctx, event.ID); err != nil {
			return err
		}
	}
	return s.ProcessEvent(ctx, event.ID)
}

// GetEvent reads a single event for status observation.
func (s *Service) GetEvent(ctx context.Context, tenantID string, eventID string) (Event, error) {
	if s == nil || s.store == nil {
		return Event{}, fmt.Errorf("core: event store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	eventID = strings.TrimSpace(eventID)
	if tenantID == "" {
		return Event{}, fmt.Errorf("core: tenant id is required")
	}
	if eventID == "" {
		return Event{}, fmt.Errorf("core: event id is required")
	}
	event, err := s.store.Get(ctx, tenantID, eventID)
	if err != nil {
		return Event{}, s.mapError(err)
	}
	return event, nil
}

// ListEvents pages through a tenant's events. It delegates to the store when
// the store supports filtered listing.
func (s *Service) ListEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("core: event store is not configured")
	}
	if strings.TrimSpace(filter.TenantID) == "" {
		return nil, fmt.Errorf("core: tenant id is required")
	}
	lister, ok := s.store.(EventLister)
	if !ok {
		return nil, fmt.Errorf("core: event store %T does not support listing", s.store)
	}
	events, err := lister.ListEvents(ctx, filter)
	if err != nil {
		return nil, s.mapError(err)
	}
	return events, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (s *Service) clock() func() time.Time {
	if s != nil && s.now != nil {
		return s.now
	}
	return func() time.Time {
		return time.Now().UTC()
	}
}
