// Package feed defines the boundary between upstream market data
// sources and the distribution pipeline. An Adapter pushes raw ticks
// into a Sink; the packaged simulated feed generates random-walk
// quotes for development and testing.
package feed
