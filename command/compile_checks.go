package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[SubmitMessage]  = (*SubmitCommand)(nil)
	_ gocmd.Commander[RetryMessage]   = (*RetryCommand)(nil)
	_ gocmd.Commander[SweepMessage]   = (*SweepCommand)(nil)
	_ gocmd.Commander[ReclaimMessage] = (*ReclaimCommand)(nil)
)
