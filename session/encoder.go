package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const recordFormatVersion = 1

const (
	maxShortField = 255
	maxBanReason  = 255
)

// Encode serializes r. The ban reason is written last.
func Encode(r *Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(160 + len(r.Subject) + len(r.TokenID) + len(r.DeviceID) + len(r.BanReason))

	buf.WriteByte(recordFormatVersion)

	for _, field := range []struct {
		name  string
		value string
	}{
		{"subject", r.Subject},
		{"token id", r.TokenID},
		{"device id", r.DeviceID},
	} {
		if len(field.value) > maxShortField {
			return nil, errors.New(field.name + " too long")
		}
		buf.WriteByte(byte(len(field.value)))
		buf.WriteString(field.value)
	}

	var ts [8]byte
	for _, v := range []int64{r.IssuedAt, r.ExpiresAt, r.CreatedAt} {
		binary.BigEndian.PutUint64(ts[:], uint64(v))
		buf.Write(ts[:])
	}

	buf.Write(r.IPHash[:])
	buf.Write(r.PlatformHash[:])
	buf.Write(r.BrowserHash[:])

	if len(r.BanReason) > maxBanReason {
		return nil, errors.New("ban reason too long")
	}
	buf.WriteByte(byte(len(r.BanReason)))
	buf.WriteString(r.BanReason)

	return buf.Bytes(), nil
}

// Decode parses a blob produced by Encode or by the ban script.
func Decode(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordFormatVersion {
		return nil, errors.New("invalid record version")
	}

	r := &Record{}
	for _, dst := range []*string{&r.Subject, &r.TokenID, &r.DeviceID} {
		if *dst, err = readShortString(reader); err != nil {
			return nil, err
		}
	}

	var ts [8]byte
	for _, dst := range []*int64{&r.IssuedAt, &r.ExpiresAt, &r.CreatedAt} {
		if _, err := io.ReadFull(reader, ts[:]); err != nil {
			return nil, err
		}
		*dst = int64(binary.BigEndian.Uint64(ts[:]))
	}

	for _, dst := range []*[32]byte{&r.IPHash, &r.PlatformHash, &r.BrowserHash} {
		if _, err := io.ReadFull(reader, dst[:]); err != nil {
			return nil, err
		}
	}

	if r.BanReason, err = readShortString(reader); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in record")
	}

	return r, nil
}

func readShortString(reader *bytes.Reader) (string, error) {
	n, err := reader.ReadByte()
	if err != nil {
		return "", err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(reader, out); err != nil {
		return "", err
	}
	return string(out), nil
}
