package eventhub

import (
	"fmt"

	hubcommand "github.com/julizen/eventhub/command"
	hubquery "github.com/julizen/eventhub/query"
)

// CommandQueryService is the hub surface the facade wraps: every mutating
// operation plus tenant-scoped reads.
type CommandQueryService interface {
	hubcommand.MutatingService
	hubquery.EventReader
}

type Commands struct {
	Submit  *hubcommand.SubmitCommand
	Retry   *hubcommand.RetryCommand
	Sweep   *hubcommand.SweepCommand
	Reclaim *hubcommand.ReclaimCommand
}

type Queries struct {
	GetEvent   *hubquery.GetEventQuery
	ListEvents *hubquery.ListEventsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	eventLister hubquery.EventLister
}

// WithEventLister supplies the paging reader for ListEvents. Without it the
// service itself must implement the lister contract; NewFacade refuses to
// build a ListEvents query that could only fail at call time.
func WithEventLister(lister hubquery.EventLister) FacadeOption {
	return func(options *facadeOptions) {
		options.eventLister = lister
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("eventhub: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	lister := cfg.eventLister
	if lister == nil {
		candidate, ok := service.(hubquery.EventLister)
		if !ok {
			return nil, fmt.Errorf("eventhub: service %T does not list events; pass WithEventLister", service)
		}
		lister = candidate
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Submit:  hubcommand.NewSubmitCommand(service),
		Retry:   hubcommand.NewRetryCommand(service),
		Sweep:   hubcommand.NewSweepCommand(service),
		Reclaim: hubcommand.NewReclaimCommand(service),
	}
	facade.queries = Queries{
		GetEvent:   hubquery.NewGetEventQuery(service),
		ListEvents: hubquery.NewListEventsQuery(lister),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
