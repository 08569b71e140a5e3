package store

import "lol.mleku.dev/log"

// badgerLogger adapts the badger.Logger interface onto the project's
// structured logger, grounded on pkg/database.logger in the teacher repo
// (a NewLogger/SetLogLevel adapter the Logger field of badger.Options
// expects), rewritten here to delegate straight to lol.mleku.dev/log
// rather than maintaining a file-backed logger of its own.
type badgerLogger struct{}

func newBadgerLogger() *badgerLogger { return &badgerLogger{} }

func (l *badgerLogger) Errorf(format string, args ...any)   { log.E.F(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...any) { log.W.F(format, args...) }
func (l *badgerLogger) Infof(format string, args ...any)    { log.I.F(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...any)   { log.T.F(format, args...) }
