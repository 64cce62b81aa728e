package sqlstore

import "github.com/julizen/eventhub/core"

var (
	_ core.EventStore             = (*EventStore)(nil)
	_ core.EventLister            = (*EventStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
