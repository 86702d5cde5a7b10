// Package sim implements the synthetic market-data simulators: the reference
// price, the recent-trades tape, the depth ladder and the chart series. Each
// simulator owns its state exclusively, advances on its own ticker, and
// publishes immutable snapshots to subscribers through a Feed.
package sim
