package gatt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/gattwalk/internal/gatttool"
)

// FindInformationPageSize is the number of attributes gatttool prints per
// char-desc page: an ATT_MTU of 23 holds five 16-bit handle/UUID pairs.
// A shorter page is taken to be the last one. This is an assumption about the
// protocol, not a signal from the peripheral.
const FindInformationPageSize = 5

// DefaultPageSettle is used when WalkerOptions.PageSettle is not positive.
const DefaultPageSettle = 100 * time.Millisecond

// WalkerOptions tunes the attribute walk.
type WalkerOptions struct {
	// PageSettle is how long a page holding fewer than FindInformationPageSize
	// rows waits for another row before it is taken as the last page. readline
	// redisplays the prompt between rows, so a prompt does not end a page.
	PageSettle time.Duration
}

// Walker enumerates the attribute table of the connected peripheral.
type Walker struct {
	transport gatttool.Transport
	logger    *logrus.Logger
	opts      WalkerOptions
}

// AttributeRow is one parsed char-desc row.
type AttributeRow struct {
	Handle string
	UUID   string
}

// page is the outcome of one char-desc request.
type page struct {
	rows []AttributeRow
	end  bool // gatttool reported that no attribute follows
}

// NewWalker creates a Walker. A nil opts uses the defaults.
func NewWalker(transport gatttool.Transport, logger *logrus.Logger, opts *WalkerOptions) *Walker {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	w := &Walker{transport: transport, logger: logger}
	if opts != nil {
		w.opts = *opts
	}
	if w.opts.PageSettle <= 0 {
		w.opts.PageSettle = DefaultPageSettle
	}
	return w
}

// Discover walks the attribute table page by page and returns every
// (handle, uuid) pair in ascending handle order. A malformed row aborts the
// walk with *gatttool.ParseError.
func (w *Walker) Discover(ctx context.Context) (*AttributeTable, error) {
	table := NewAttributeTable()
	cursor := ""

	for n := 1; ; n++ {
		p, err := w.fetchPage(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("attribute page %d: %w", n, err)
		}

		added := 0
		for _, row := range p.rows {
			if table.Set(row.Handle, row.UUID) {
				added++
			}
			cursor = row.Handle
		}

		w.logger.WithFields(logrus.Fields{
			"page":   n,
			"rows":   len(p.rows),
			"added":  added,
			"cursor": cursor,
		}).Debug("attribute page parsed")

		switch {
		case p.end:
			w.logger.Debug("end of attribute table reported")
			return table, nil
		case len(p.rows) < FindInformationPageSize:
			return table, nil
		case added == 0:
			w.logger.WithField("cursor", cursor).Warn("attribute walk made no progress, stopping")
			return table, nil
		}
	}
}

// fetchPage requests one page starting at cursor (the beginning when empty)
// and consumes its rows one complete line at a time. A full page returns at
// once; a short page ends when no further row arrives within PageSettle.
func (w *Walker) fetchPage(ctx context.Context, cursor string) (*page, error) {
	if err := w.transport.Send(gatttool.CharDesc(cursor)); err != nil {
		return nil, err
	}

	first, err := w.transport.Expect(ctx, gatttool.AttributeRowMarker, gatttool.EndOfTableMarker, gatttool.DisconnectedMarker)
	if err != nil {
		return nil, err
	}
	switch first.Index {
	case 1:
		return &page{end: true}, nil
	case 2:
		return nil, gatttool.ErrNotConnected
	}

	p := &page{}
	if err := p.add(first.Group(1)); err != nil {
		return nil, err
	}

	for len(p.rows) < FindInformationPageSize {
		waitCtx, cancel := context.WithTimeout(ctx, w.opts.PageSettle)
		next, err := w.transport.Expect(waitCtx, gatttool.AttributeRowMarker, gatttool.EndOfTableMarker)
		cancel()
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, gatttool.ErrTimeout) {
				break
			}
			return nil, err
		}
		if next.Index == 1 {
			p.end = true
			break
		}
		if err := p.add(next.Group(1)); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// add parses one row line and appends it to the page.
func (p *page) add(line string) error {
	handle, uuid, err := gatttool.ParseAttributeLine(line)
	if err != nil {
		return err
	}
	p.rows = append(p.rows, AttributeRow{Handle: handle, UUID: uuid})
	return nil
}

// ScanCharacteristics decodes every characteristic declaration in table and
// maps its value handle ("0x"-prefixed) to the declaration, in table order.
// Declarations that cannot be decoded are skipped.
func ScanCharacteristics(ctx context.Context, r *Reader, table *AttributeTable) (*CharacteristicTable, error) {
	chars := NewCharacteristicTable()
	err := table.Each(func(handle, uuid string) error {
		if uuid != UUIDCharacteristic {
			return nil
		}
		c, err := r.ReadCharacteristic(ctx, handle)
		if err != nil {
			return fmt.Errorf("characteristic declaration %s: %w", handle, err)
		}
		if c.IsZero() {
			r.logger.WithField("handle", handle).Warn("characteristic declaration is empty, skipping")
			return nil
		}
		chars.Set("0x"+c.ValueHandle, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chars, nil
}
