package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ Registry    = (*TopicRegistry)(nil)
	_ Dispatcher  = (*WorkerDispatcher)(nil)
	_ RetryPolicy = ExponentialBackoffPolicy{}
	_ Handler     = HandlerFunc(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
