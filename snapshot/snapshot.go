// Package snapshot writes and reads engine state files.
//
// A snapshot file is
//
//	magic "FWSS" | version byte | blake3-256 of the payload | lz4 frame
//
// where the lz4 frame holds the JSON encoding of a Snapshot. The checksum
// covers the uncompressed JSON so a file that decompresses cleanly but was
// altered is still rejected.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
	"lukechampine.com/blake3"

	"github.com/archslayer/flagbase111-sub000/core"
)

const version byte = 1

// MaxPayloadSize caps the decompressed JSON payload Decode accepts.
const MaxPayloadSize = 256 << 20

var magic = []byte("FWSS")

var (
	ErrBadMagic         = errors.New("snapshot: not a snapshot file")
	ErrUnknownVersion   = errors.New("snapshot: unknown version")
	ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")
	ErrTooLarge         = errors.New("snapshot: payload too large")
)

// Snapshot is engine state tagged with the rules it was produced under.
type Snapshot struct {
	Rules   string     `json:"rules"`
	ChainID uint64     `json:"chainId"`
	State   core.State `json:"state"`
}

// Of captures the current state of e.
func Of(e *core.Engine) Snapshot {
	rules := e.Rules()
	return Snapshot{Rules: rules.Name, ChainID: rules.ChainID, State: e.Export()}
}

// Restore imports s into a fresh engine running the same chain.
func (s Snapshot) Restore(e *core.Engine) error {
	if rules := e.Rules(); rules.ChainID != s.ChainID {
		return fmt.Errorf("snapshot: taken on chain %d, engine runs chain %d", s.ChainID, rules.ChainID)
	}
	return e.Import(s.State)
}

// Encode writes s to w.
func Encode(w io.Writer, s Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	sum := blake3.Sum256(payload)

	var buf bytes.Buffer
	buf.Write(magic)
	buf.WriteByte(version)
	buf.Write(sum[:])

	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// Decode reads a snapshot written by Encode. Payloads that decompress to
// more than MaxPayloadSize bytes are rejected with ErrTooLarge.
func Decode(r io.Reader) (Snapshot, error) {
	return decode(r, MaxPayloadSize)
}

func decode(r io.Reader, limit int64) (Snapshot, error) {
	header := make([]byte, len(magic)+1+32)
	if _, err := io.ReadFull(r, header); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	if !bytes.Equal(header[:len(magic)], magic) {
		return Snapshot{}, ErrBadMagic
	}
	if v := header[len(magic)]; v != version {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrUnknownVersion, v)
	}
	var want [32]byte
	copy(want[:], header[len(magic)+1:])

	payload, err := io.ReadAll(io.LimitReader(lz4.NewReader(r), limit+1))
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: decompress: %w", err)
	}
	if int64(len(payload)) > limit {
		return Snapshot{}, fmt.Errorf("%w: over %d bytes", ErrTooLarge, limit)
	}
	if blake3.Sum256(payload) != want {
		return Snapshot{}, ErrChecksumMismatch
	}

	var s Snapshot
	if err := json.Unmarshal(payload, &s); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: decode: %w", err)
	}
	return s, nil
}

// Save writes s to path, replacing any existing file.
func Save(path string, s Snapshot) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := Encode(f, s); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads the snapshot at path.
func Load(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, err
	}
	defer f.Close()
	return Decode(f)
}
