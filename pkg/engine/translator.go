package engine

import (
	"context"
	"strings"

	"github.com/ablauf-dev/ablauf/pkg/api"
	"github.com/ablauf-dev/ablauf/pkg/transport"
)

// Translator converts one run's update sequence into the protocol event
// stream. Each streaming request is served by its own instance; no state
// is shared across instances, so no locking is needed.
//
// Sequence numbers form a gapless run starting at 1. The output index
// starts at 0 and increments only when a buffered message is flushed.
// Text accumulates in a single buffer keyed by message id; a message
// boundary is detected purely by message-id inequality. Workflow events
// consume a sequence number but never touch the buffer or output index.
type Translator struct {
	snapshots SnapshotBuilder

	seq            int
	outputIndex    int
	createdEmitted bool
	lastSnapshot   *api.Response

	bufMessageID string
	buf          strings.Builder

	finalized []api.Item
}

// NewTranslator creates a Translator for one stream. The snapshot builder
// must not be nil.
func NewTranslator(snapshots SnapshotBuilder) *Translator {
	return &Translator{snapshots: snapshots, seq: 1}
}

// nextSeq returns the current sequence number and increments it.
func (t *Translator) nextSeq() int {
	n := t.seq
	t.seq++
	return n
}

// EventsEmitted reports how many events have been written so far.
func (t *Translator) EventsEmitted() int {
	return t.seq - 1
}

// CreatedEmitted reports whether the response.created envelope went out.
func (t *Translator) CreatedEmitted() bool {
	return t.createdEmitted
}

// Items returns the finalized message items flushed during translation,
// in emission order. Valid after Translate returns; used to build the
// stored response.
func (t *Translator) Items() []api.Item {
	return t.finalized
}

// Translate pulls updates from the source until exhaustion, cancellation,
// or failure, writing protocol events to w in emission order. On normal
// exhaustion the buffer is flushed and, if response.created was emitted, a
// terminal response.completed follows. Cancellation and failure stop the
// stream abruptly: no flush, no terminal event.
func (t *Translator) Translate(ctx context.Context, src UpdateSource, w transport.ResponseWriter) error {
	for {
		u, ok, err := src.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return t.finish(ctx, w)
		}
		if err := t.apply(ctx, u, w); err != nil {
			return err
		}
	}
}

// apply processes a single update, emitting zero or more events.
func (t *Translator) apply(ctx context.Context, u Update, w transport.ResponseWriter) error {
	kind := u.Kind()
	if kind == UpdateEmpty {
		return nil
	}

	// The first qualifying update, text or workflow, triggers the envelope.
	if !t.createdEmitted {
		snap, err := t.snapshots.Build(u)
		if err != nil {
			return err
		}
		t.lastSnapshot = snap
		if err := w.WriteEvent(ctx, api.StreamEvent{
			Type:           api.EventResponseCreated,
			SequenceNumber: t.nextSeq(),
			Response:       snap,
		}); err != nil {
			return err
		}
		t.createdEmitted = true
	}

	if kind == UpdateWorkflowEvent {
		return w.WriteEvent(ctx, workflowEvent(*u.Event, t.nextSeq(), t.outputIndex))
	}

	for _, text := range u.Contents {
		if text == "" {
			continue
		}
		if t.bufMessageID != "" && t.bufMessageID != u.MessageID {
			if err := t.flush(ctx, w); err != nil {
				return err
			}
		}
		t.bufMessageID = u.MessageID
		if err := w.WriteEvent(ctx, api.StreamEvent{
			Type:           api.EventOutputTextDelta,
			SequenceNumber: t.nextSeq(),
			OutputIndex:    t.outputIndex,
			ContentIndex:   0,
			Delta:          text,
			ItemID:         u.MessageID,
		}); err != nil {
			return err
		}
		t.buf.WriteString(text)
	}
	return nil
}

// flush finalizes the buffered message: emits output_item.done, advances
// the output index, and clears the buffer.
func (t *Translator) flush(ctx context.Context, w transport.ResponseWriter) error {
	item := api.NewTextItem(t.bufMessageID, t.buf.String())
	if err := w.WriteEvent(ctx, api.StreamEvent{
		Type:           api.EventOutputItemDone,
		SequenceNumber: t.nextSeq(),
		OutputIndex:    t.outputIndex,
		Item:           &item,
	}); err != nil {
		return err
	}
	t.outputIndex++
	t.finalized = append(t.finalized, item)
	t.bufMessageID = ""
	t.buf.Reset()
	return nil
}

// finish handles source exhaustion: flush any open buffer, then emit the
// terminal event if and only if the envelope went out. A stream that never
// saw a qualifying update produces no events at all.
func (t *Translator) finish(ctx context.Context, w transport.ResponseWriter) error {
	if t.bufMessageID != "" {
		if err := t.flush(ctx, w); err != nil {
			return err
		}
	}
	if !t.createdEmitted {
		return nil
	}
	return w.WriteEvent(ctx, api.StreamEvent{
		Type:           api.EventResponseCompleted,
		SequenceNumber: t.nextSeq(),
		Response:       t.lastSnapshot,
	})
}
