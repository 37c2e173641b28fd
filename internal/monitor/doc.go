// Package monitor is the status-monitoring engine.
//
// A Source fetches and normalizes one external status feed into a
// HealthReading. A Poller drives one Source on a schedule and hands each
// reading to that service's Engine, the Calm/Heavy state machine that
// decides which Sink operations to run for every registered tenant.
// Supervisor owns the set of monitors and their lifecycle.
package monitor
