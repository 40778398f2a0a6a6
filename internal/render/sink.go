package render

// Sink consumes values drained from the metric stream bus. The render
// loop forwards every drained value to every sink; sinks decide how to
// present them.
type Sink interface {
	Observe(channel, key string, value interface{})
	Flush() error
}
