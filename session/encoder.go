package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	recordFormatVersionCurrent = 1
	recordFormatVersionV1      = 1
)

// CurrentSchemaVersion is the version byte written by [Encode].
const CurrentSchemaVersion = recordFormatVersionCurrent

const maxMemberships = math.MaxUint16

// ErrCorrupt is returned when a stored blob cannot be decoded.
var ErrCorrupt = errors.New("session record corrupt")

// Encode serializes r into the current binary layout:
//
//	version u8
//	profile id, username, global name, discriminator, avatar   (u16 len + bytes each)
//	membership count u16, then per membership id, name         (u16 len + bytes each)
//	created_at i64, expires_at i64                             (big endian)
//
// SessionID is not part of the blob; it is the Redis key.
func Encode(r *Record) ([]byte, error) {
	if r == nil {
		return nil, errors.New("nil record")
	}
	if len(r.Memberships) > maxMemberships {
		return nil, errors.New("too many memberships")
	}

	var buf bytes.Buffer
	buf.WriteByte(recordFormatVersionCurrent)

	profile := []struct {
		name  string
		value string
	}{
		{"profile id", r.Profile.ID},
		{"username", r.Profile.Username},
		{"global name", r.Profile.GlobalName},
		{"discriminator", r.Profile.Discriminator},
		{"avatar", r.Profile.Avatar},
	}
	for _, f := range profile {
		if err := writeString(&buf, f.name, f.value); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, uint16(len(r.Memberships))); err != nil {
		return nil, err
	}
	for _, m := range r.Memberships {
		if err := writeString(&buf, "membership id", m.ID); err != nil {
			return nil, err
		}
		if err := writeString(&buf, "membership name", m.Name); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, r.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a blob produced by [Encode]. Every failure wraps [ErrCorrupt].
func Decode(data []byte) (*Record, error) {
	r, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return r, nil
}

func decode(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordFormatVersionV1 {
		return nil, fmt.Errorf("unsupported session schema version %d", version)
	}

	r := &Record{}
	for _, dst := range []*string{
		&r.Profile.ID,
		&r.Profile.Username,
		&r.Profile.GlobalName,
		&r.Profile.Discriminator,
		&r.Profile.Avatar,
	} {
		if *dst, err = readString(reader); err != nil {
			return nil, err
		}
	}
	if r.Profile.ID == "" {
		return nil, errors.New("empty profile id")
	}

	var count uint16
	if err := binary.Read(reader, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	// Each membership needs at least two length prefixes.
	if int(count)*4 > reader.Len() {
		return nil, io.ErrUnexpectedEOF
	}
	r.Memberships = make([]Membership, count)
	for i := range r.Memberships {
		if r.Memberships[i].ID, err = readString(reader); err != nil {
			return nil, err
		}
		if r.Memberships[i].Name, err = readString(reader); err != nil {
			return nil, err
		}
	}

	if err := binary.Read(reader, binary.BigEndian, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes")
	}

	return r, nil
}

func writeString(buf *bytes.Buffer, field, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("%s too long", field)
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	if int(n) > reader.Len() {
		return "", io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(reader, b); err != nil {
		return "", err
	}
	return string(b), nil
}
