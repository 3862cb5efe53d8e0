package types

import "image/draw"

// Frame is the host pipeline's frame object as seen by the adapter stages.
// Messages carry JSON metadata attached by earlier pipeline elements;
// AddMessage appends metadata for later elements and downstream consumers.
type Frame interface {
	// Messages returns the metadata messages attached to the frame, in
	// attachment order.
	Messages() []string
	// AddMessage attaches a metadata message to the frame.
	AddMessage(msg string)
	// Image returns the decoded frame pixels for image publication. The
	// returned image may be drawn on in place.
	Image() (draw.Image, error)
}
