package gatt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/gattwalk/internal/gatttool"
)

// Reader issues read-by-handle requests and decodes the returned octets.
// Values are cached per handle for the lifetime of the Reader, so a handle
// decoded in both discovery passes is read from the peripheral once.
type Reader struct {
	transport gatttool.Transport
	logger    *logrus.Logger
	cache     *hashmap.Map[string, []string]
}

// NewReader creates a Reader on top of transport. A nil logger discards output.
func NewReader(transport gatttool.Transport, logger *logrus.Logger) *Reader {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Reader{
		transport: transport,
		logger:    logger,
		cache:     hashmap.New[string, []string](),
	}
}

// ReadValue reads the attribute at handle and returns its octet tokens.
// A zero-length value yields an empty slice. An ATT error reported by the
// peripheral is returned as *gatttool.ReadFailedError.
func (r *Reader) ReadValue(ctx context.Context, handle string) ([]string, error) {
	if octets, ok := r.cache.Get(handle); ok {
		return octets, nil
	}

	if err := r.transport.Send(gatttool.CharReadHandle(handle)); err != nil {
		return nil, err
	}
	c, err := r.transport.Expect(ctx, gatttool.ValueMarker, gatttool.ReadFailedMarker, gatttool.DisconnectedMarker)
	if err != nil {
		return nil, fmt.Errorf("read of handle %s: %w", handle, err)
	}

	switch c.Index {
	case 1:
		return nil, &gatttool.ReadFailedError{Handle: handle, Reason: strings.TrimSpace(c.Group(1))}
	case 2:
		return nil, fmt.Errorf("read of handle %s: %w", handle, gatttool.ErrNotConnected)
	}

	octets, err := gatttool.ParseOctets(c.Group(1))
	if err != nil {
		return nil, err
	}
	r.logger.WithFields(logrus.Fields{
		"handle": handle,
		"octets": len(octets),
	}).Debug("attribute value read")

	r.cache.Set(handle, octets)
	return octets, nil
}

// read wraps ReadValue for the rendering helpers: a peripheral-side read
// failure becomes a placeholder value instead of an error.
func (r *Reader) read(ctx context.Context, handle string) ([]string, string, error) {
	octets, err := r.ReadValue(ctx, handle)
	if err == nil {
		return octets, "", nil
	}
	var readFailed *gatttool.ReadFailedError
	if errors.As(err, &readFailed) {
		r.logger.WithError(err).Warn("attribute not readable")
		return nil, fmt.Sprintf("<read failed: %s>", readFailed.Reason), nil
	}
	return nil, "", err
}

// ReadString reads handle and decodes it with DecodeString.
func (r *Reader) ReadString(ctx context.Context, handle string) (string, error) {
	octets, placeholder, err := r.read(ctx, handle)
	if err != nil || placeholder != "" {
		return placeholder, err
	}
	return DecodeString(octets)
}

// ReadHex reads handle and decodes it with DecodeHex.
func (r *Reader) ReadHex(ctx context.Context, handle string) (string, error) {
	octets, placeholder, err := r.read(ctx, handle)
	if err != nil || placeholder != "" {
		return placeholder, err
	}
	return DecodeHex(octets), nil
}

// ReadUUID reads handle and decodes it with DecodeUUID.
func (r *Reader) ReadUUID(ctx context.Context, handle string) (string, error) {
	octets, placeholder, err := r.read(ctx, handle)
	if err != nil || placeholder != "" {
		return placeholder, err
	}
	return DecodeUUID(octets)
}

// ReadCharacteristic reads a characteristic declaration. An unreadable
// declaration yields the zero Characteristic.
func (r *Reader) ReadCharacteristic(ctx context.Context, handle string) (Characteristic, error) {
	octets, _, err := r.read(ctx, handle)
	if err != nil {
		return Characteristic{}, err
	}
	return DecodeCharacteristic(octets)
}

// ReadConnectionParameters reads handle and decodes it with DecodeConnectionParameters.
func (r *Reader) ReadConnectionParameters(ctx context.Context, handle string) (string, error) {
	octets, placeholder, err := r.read(ctx, handle)
	if err != nil || placeholder != "" {
		return placeholder, err
	}
	return DecodeConnectionParameters(octets)
}

// ReadAppearance reads handle and decodes it with DecodeAppearance.
func (r *Reader) ReadAppearance(ctx context.Context, handle string) (string, error) {
	octets, placeholder, err := r.read(ctx, handle)
	if err != nil || placeholder != "" {
		return placeholder, err
	}
	return DecodeAppearance(octets)
}
