package plugin

// NewDbusDep builds the built-in D-Bus condition stub: a documented
// no-op hook callback registered with a dependency list, keeping the
// registration shape of plugins/dbus.c (hook point + depends) without
// reimplementing message-bus setup, which spec.md scopes out — this
// supervisor only consumes D-Bus-derived conditions, it never
// produces them.
func NewDbusDep() *Plugin {
	return &Plugin{
		Name:    "dbusdep",
		Depends: []string{"bootmisc"},
		Hooks: map[Hook]Callback{
			BasefsUp: func(ctx *Context) error { return nil },
		},
	}
}
