// Package sched drives services through the state machine in
// registry.State: step(svc) takes one service one tick closer to its
// target, step_all iterates the registry to a fixed point. It is the
// only code that forks/execs and reaps child processes; everything
// else (config reload, client commands, condition changes, runlevel
// changes) only ever marks services dirty and calls StepAll.
package sched
