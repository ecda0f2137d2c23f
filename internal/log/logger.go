package log

import (
	"sync/atomic"
	"time"
)

// Logger is a named, leveled log context. Zero value is not useful;
// construct with New() or use the package-level default.
type Logger struct {
	name  string
	level int32 // atomic, holds a Priority
	kv    []interface{}
}

// New returns a Logger named name, logging through the current root
// handler at LOG_INFO and above.
func New(name string) *Logger {
	l := &Logger{name: name}
	l.SetLevel(LOG_INFO)
	return l
}

// With returns a child Logger with kv appended to every event it logs,
// e.g. log.With("svc", name, "id", id).
func (l *Logger) With(kv ...interface{}) *Logger {
	child := &Logger{name: l.name, kv: append(append([]interface{}{}, l.kv...), kv...)}
	child.SetLevel(l.Level())
	return child
}

// SetLevel sets the maximum level this Logger generates events for.
func (l *Logger) SetLevel(p Priority) { atomic.StoreInt32(&l.level, int32(p)) }

// Level returns the current level.
func (l *Logger) Level() Priority { return Priority(atomic.LoadInt32(&l.level)) }

// Does reports whether a log call at p would actually produce an event.
func (l *Logger) Does(p Priority) bool { return p <= l.Level() }

func (l *Logger) log(p Priority, msg string, kv ...interface{}) {
	if !l.Does(p) {
		return
	}
	all := kv
	if len(l.kv) > 0 {
		all = make([]interface{}, 0, len(l.kv)+len(kv))
		all = append(all, l.kv...)
		all = append(all, kv...)
	}
	getHandler().Log(Event{
		Time:  time.Now(),
		Level: p,
		Name:  l.name,
		Msg:   msg,
		KV:    normalize(all),
	})
}

func (l *Logger) EMERG(msg string, kv ...interface{})   { l.log(LOG_EMERG, msg, kv...) }
func (l *Logger) ALERT(msg string, kv ...interface{})   { l.log(LOG_ALERT, msg, kv...) }
func (l *Logger) CRIT(msg string, kv ...interface{})    { l.log(LOG_CRIT, msg, kv...) }
func (l *Logger) ERROR(msg string, kv ...interface{})   { l.log(LOG_ERR, msg, kv...) }
func (l *Logger) WARN(msg string, kv ...interface{})    { l.log(LOG_WARNING, msg, kv...) }
func (l *Logger) NOTICE(msg string, kv ...interface{})  { l.log(LOG_NOTICE, msg, kv...) }
func (l *Logger) INFO(msg string, kv ...interface{})    { l.log(LOG_INFO, msg, kv...) }
func (l *Logger) DEBUG(msg string, kv ...interface{})   { l.log(LOG_DEBUG, msg, kv...) }

// root is the package-level default logger, unnamed, used by code
// which has not constructed its own Logger (e.g. very early bootstrap).
var root = New("")

func SetLevel(p Priority) { root.SetLevel(p) }
func EMERG(msg string, kv ...interface{})  { root.EMERG(msg, kv...) }
func ALERT(msg string, kv ...interface{})  { root.ALERT(msg, kv...) }
func CRIT(msg string, kv ...interface{})   { root.CRIT(msg, kv...) }
func ERROR(msg string, kv ...interface{})  { root.ERROR(msg, kv...) }
func WARN(msg string, kv ...interface{})   { root.WARN(msg, kv...) }
func NOTICE(msg string, kv ...interface{}) { root.NOTICE(msg, kv...) }
func INFO(msg string, kv ...interface{})   { root.INFO(msg, kv...) }
func DEBUG(msg string, kv ...interface{})  { root.DEBUG(msg, kv...) }

// Func is a narrow logging callback shape for routing a component's
// events into a caller-chosen sink, mirroring gone/daemon's LoggerFunc.
// No package in this module takes a Func at present.
type Func func(level Priority, msg string)

// Adapt turns a Logger into a Func bound to a fixed name, for handing
// to components that only know about the narrower Func shape.
func (l *Logger) Adapt() Func {
	return func(level Priority, msg string) { l.log(level, msg) }
}
