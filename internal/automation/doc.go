// Package automation runs household rules without user input.
//
// The Engine ticks on a fixed interval. Each tick takes one Snapshot of the
// state store and evaluates rules in priority order; the first rule that
// proposes actions wins and its proposal is queued. A single worker drains
// the queue through the same executor user commands use, so a slow pin write
// delays that worker but never the ticker.
//
//	Ticker ──▶ Tick ──▶ rules (priority order) ──▶ queue ──▶ worker ──▶ executor
//	                                                             │
//	                                                             ├─▶ Repository (automation_runs)
//	                                                             └─▶ hub "automation.triggered"
//
// Built-in rules:
//
//   - IdleRule turns off devices left on past the idle threshold in rooms
//     without an occupancy signal, once per idle episode.
//   - ComfortRule cools the house when the indoor temperature exceeds the
//     comfort ceiling.
//
// A panic in a rule or in execution is recovered and logged; the next tick
// runs normally.
//
// The SensorFeed keeps the store's occupancy and climate readings current
// from MQTT sensor topics.
package automation
