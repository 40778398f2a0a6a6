package render

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"go-refine-pipeline/internal/metrics"
)

// ConsoleSink prints drained metric values as colored lines, one per
// value. Curves are summarized rather than dumped.
type ConsoleSink struct {
	Out io.Writer

	channelColor *color.Color
	keyColor     *color.Color
}

// NewConsoleSink returns a console sink writing to out.
func NewConsoleSink(out io.Writer) *ConsoleSink {
	return &ConsoleSink{
		Out:          out,
		channelColor: color.New(color.FgCyan),
		keyColor:     color.New(color.FgGreen),
	}
}

// Observe prints one drained value.
func (s *ConsoleSink) Observe(channel, key string, value interface{}) {
	label := fmt.Sprintf("%s %s",
		s.channelColor.Sprintf("[%s]", channel),
		s.keyColor.Sprint(key))
	switch v := value.(type) {
	case metrics.Curve:
		fmt.Fprintf(s.Out, "📈 %s = curve with %d points\n", label, len(v.X))
	case float64:
		fmt.Fprintf(s.Out, "📈 %s = %.6g\n", label, v)
	default:
		fmt.Fprintf(s.Out, "📈 %s = %v\n", label, v)
	}
}

// Flush is a no-op: the console sink writes eagerly.
func (s *ConsoleSink) Flush() error {
	return nil
}
