// Package protocol implements the wire framing and request/response
// shapes of spec §6: one JSON request and one JSON response per
// connection, each prefixed by a 4-byte big-endian length. There is no
// pipelining — a client writes one request, reads one response, and the
// server serves exactly one request per accepted connection.
//
// Grounded on the original project's src/common.rs request/response
// enums and its server/client framing over serde_json::Deserializer;
// the length-prefix framing itself follows the same shape the teacher's
// protocol-adjacent code uses for self-delimited messages, generalized
// from a streaming decoder to an explicit length prefix since Go's
// net.Conn gives no natural end-of-message marker for JSON-over-TCP.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/nilotpal-labs/emberkv/pkg/kverrors"
)

// Op names the requested operation.
type Op string

const (
	OpGet    Op = "get"
	OpSet    Op = "set"
	OpRemove Op = "rm"
)

// Request is the single envelope for every client call.
type Request struct {
	Op    Op     `json:"op"`
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// Status distinguishes a Response that carries a result from one that
// carries an error.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Response is the single envelope for every server reply. Value is only
// meaningful for a successful Get. Found distinguishes "key absent" from
// "value is the empty string" for Get.
type Response struct {
	Status Status `json:"status"`
	Value  string `json:"value,omitempty"`
	Found  bool   `json:"found,omitempty"`
	Error  string `json:"error,omitempty"`
}

const maxMessageSize = 64 << 20 // 64 MiB, generous ceiling against a corrupt length prefix

// WriteMessage frames payload as a 4-byte big-endian length followed by
// its JSON encoding, and writes the header and then the body to w.
func WriteMessage(w io.Writer, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return kverrors.NewSerdeError(err, "encode message")
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))

	if _, err := w.Write(header[:]); err != nil {
		return kverrors.NewIOError(err, "write message length")
	}
	if _, err := w.Write(body); err != nil {
		return kverrors.NewIOError(err, "write message body")
	}
	return nil
}

// ReadMessage reads one length-prefixed JSON message from r and decodes
// it into out.
func ReadMessage(r io.Reader, out any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return kverrors.NewIOError(err, "read message length")
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > maxMessageSize {
		return kverrors.NewSerdeError(nil, "message exceeds maximum size")
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return kverrors.NewIOError(err, "read message body")
	}

	if err := json.Unmarshal(body, out); err != nil {
		return kverrors.NewSerdeError(err, "decode message")
	}
	return nil
}

// WriteRequest frames and writes req.
func WriteRequest(w io.Writer, req Request) error { return WriteMessage(w, req) }

// ReadRequest reads and decodes one Request.
func ReadRequest(r io.Reader) (Request, error) {
	var req Request
	err := ReadMessage(r, &req)
	return req, err
}

// WriteResponse frames and writes resp.
func WriteResponse(w io.Writer, resp Response) error { return WriteMessage(w, resp) }

// ReadResponse reads and decodes one Response.
func ReadResponse(r io.Reader) (Response, error) {
	var resp Response
	err := ReadMessage(r, &resp)
	return resp, err
}
