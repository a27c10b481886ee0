package events

import (
	"fmt"
	"io"
)

// WriteSSE writes evt as one SSE message: an id: line, an event: line,
// and a data: JSON line, terminated by a blank line.
func WriteSSE(w io.Writer, evt Event) error {
	_, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.ID, evt.Type, evt.JSON())
	return err
}
