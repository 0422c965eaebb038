// Package record implements the log record codec (spec §4.2): encoding a
// Set or Remove mutation to a writable stream and decoding a stream of
// concatenated, newline-delimited JSON objects back into records while
// tracking the exact byte offset after each one — recovery and
// compaction both depend on this offset matching the real on-disk byte
// count a live Set/Remove recorded.
//
// This mirrors the original kvs engine's use of serde_json's streaming
// Deserializer plus a position-tracking writer. encoding/json's
// *json.Decoder.InputOffset() looks like the obvious Go counterpart, but
// it reports the offset immediately after the decoded value, before the
// trailing newline Encode writes is consumed — so Decoder instead reads
// one newline-terminated line at a time with a bufio.Reader, keeping its
// own running offset that includes that newline, the same convention
// Encode's byte count already includes.
package record

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/nilotpal-labs/emberkv/pkg/kverrors"
)

// Kind distinguishes the two record variants.
type Kind uint8

const (
	Set Kind = iota
	Remove
)

func (k Kind) String() string {
	if k == Set {
		return "set"
	}
	return "remove"
}

// Record is the tagged union spec §3 describes: Set{key,value} or
// Remove{key}. Value is unused (empty) for Remove records.
type Record struct {
	Kind  Kind
	Key   string
	Value string
}

// wire is the on-disk JSON shape. A short, explicit "op" discriminant
// keeps the framing self-delimiting and forward-compatible without
// needing a custom MarshalJSON.
type wire struct {
	Op    string `json:"op"`
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

func NewSet(key, value string) Record  { return Record{Kind: Set, Key: key, Value: value} }
func NewRemove(key string) Record      { return Record{Kind: Remove, Key: key} }
func (r Record) IsSet() bool           { return r.Kind == Set }
func (r Record) IsRemove() bool        { return r.Kind == Remove }

// countingWriter tracks total bytes written, the same role the original
// engine's BufWriterWithPos played around a buffered file handle.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Encode appends rec's serialized form to w and returns the number of
// bytes written. Each record is one newline-terminated JSON object, so a
// run of Encode calls against the same stream is exactly what Decode's
// streaming reader expects back.
func Encode(w io.Writer, rec Record) (int64, error) {
	cw := &countingWriter{w: w}

	var wr wire
	switch rec.Kind {
	case Set:
		wr = wire{Op: "set", Key: rec.Key, Value: rec.Value}
	case Remove:
		wr = wire{Op: "rm", Key: rec.Key}
	}

	enc := json.NewEncoder(cw)
	if err := enc.Encode(wr); err != nil {
		return cw.n, kverrors.NewSerdeError(err, "encode record")
	}
	return cw.n, nil
}

// Decoder streams records from a reader, reporting the absolute byte
// offset reached after each successful Decode — recovery and compaction
// rely on these offsets to build index entries without re-reading, and
// they must match the byte counts Encode reported for the same bytes.
type Decoder struct {
	r   *bufio.Reader
	off int64
}

// NewDecoder wraps r for streaming decode. r is typically positioned at
// the start of a segment file; Offset() returns byte positions relative
// to wherever r started reading.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Offset returns the number of bytes consumed from the underlying reader
// so far, i.e. the start of whatever comes next.
func (d *Decoder) Offset() int64 { return d.off }

// Decode reads one record. It returns io.EOF (unwrapped, so callers can
// use errors.Is) when the stream is exhausted cleanly.
func (d *Decoder) Decode() (Record, error) {
	line, err := d.r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF {
			// Either a clean end of stream, or a truncated final record with
			// no trailing newline (a crash cut the write short); either way
			// replay simply stops here.
			return Record{}, io.EOF
		}
		return Record{}, kverrors.NewSerdeError(err, "read record")
	}

	var wr wire
	if err := json.Unmarshal(line[:len(line)-1], &wr); err != nil {
		return Record{}, kverrors.NewSerdeError(err, "decode record")
	}
	d.off += int64(len(line))

	switch wr.Op {
	case "set":
		return Record{Kind: Set, Key: wr.Key, Value: wr.Value}, nil
	case "rm":
		return Record{Kind: Remove, Key: wr.Key}, nil
	default:
		return Record{}, kverrors.NewSerdeError(nil, "unknown record op "+wr.Op)
	}
}
