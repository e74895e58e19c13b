package exception

import "github.com/yanun0323/errors"

// Ledger errors.
var (
	ErrInvalidFill    = errors.New("ledger: invalid fill")
	ErrJournalFull    = errors.New("journal: queue full")
	ErrJournalClosed  = errors.New("journal: writer closed")
	ErrJournalStarted = errors.New("journal: writer already started")
)
