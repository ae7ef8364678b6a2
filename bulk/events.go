package bulk

import "context"

// Event names, in emission order for a successful conversion. A failed
// conversion ends with EventError instead; EventDone is never emitted after
// an error.
const (
	EventReceived   = "received"
	EventSaving     = "saving"
	EventConverting = "converting"
	EventExporting  = "exporting"
	EventResult     = "result"
	EventDone       = "done"
	EventError      = "error"
)

// Event is one progress notification of a streamed conversion. Failures
// travel in-band as EventError; the channel itself never delivers an error.
type Event struct {
	Name string `json:"event"`
	Data string `json:"data,omitempty"`
}

// Saver persists the raw upload before conversion starts. It exists so the
// event stream can report the save step distinctly from conversion.
type Saver interface {
	Save(ctx context.Context, filename string, data []byte) error
}

// StreamEvents runs one conversion and emits progress events on the
// returned channel. The channel is closed after the terminal event, which is
// EventDone on success and EventError on any failure. saver may be nil, in
// which case the saving step is reported but is a no-op.
func StreamEvents(ctx context.Context, converter Converter, saver Saver, item Item, format Format) <-chan Event {
	ch := make(chan Event, 1)

	go func() {
		defer close(ch)

		emit := func(e Event) bool {
			select {
			case ch <- e:
				return true
			case <-ctx.Done():
				return false
			}
		}
		fail := func(err error) {
			emit(Event{Name: EventError, Data: err.Error()})
		}

		if !emit(Event{Name: EventReceived, Data: item.Filename}) {
			return
		}

		if !emit(Event{Name: EventSaving}) {
			return
		}
		if saver != nil {
			if err := saver.Save(ctx, item.Filename, item.Data); err != nil {
				fail(err)
				return
			}
		}

		if !emit(Event{Name: EventConverting}) {
			return
		}
		doc, err := converter.Convert(ctx, item.Filename, item.Data)
		if err != nil {
			fail(err)
			return
		}

		if !emit(Event{Name: EventExporting}) {
			return
		}
		content, err := doc.Export(format)
		if err != nil {
			fail(err)
			return
		}

		if !emit(Event{Name: EventResult, Data: content}) {
			return
		}
		emit(Event{Name: EventDone})
	}()

	return ch
}
