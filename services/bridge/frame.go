package bridge

import (
	"io"

	"buttonmon-go/bus"
	"buttonmon-go/errcode"

	"github.com/fxamacker/cbor/v2"
)

// Frame types on the wire.
const (
	FramePing  byte = 0x01
	FramePong  byte = 0x02
	FramePub   byte = 0x10
	FrameClose byte = 0x7f
)

// maxFrameBody bounds a single frame; attribute payloads are tiny, so this
// mostly guards against a desynchronised peer.
const maxFrameBody = 4096

// Frame is one link message. The body is CBOR with integer keys; Payload is
// itself CBOR, decoded by the consumer that knows the topic's type.
type Frame struct {
	Type    byte            `cbor:"1,keyasint"`
	Topic   string          `cbor:"2,keyasint,omitempty"`
	Payload cbor.RawMessage `cbor:"3,keyasint,omitempty"`
}

// PubFrame wraps a bus message as a publish frame.
func PubFrame(m *bus.Message) (Frame, error) {
	body, err := cbor.Marshal(m.Payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FramePub, Topic: m.Topic.String(), Payload: body}, nil
}

// Wire format: 2-byte big-endian body length, then the CBOR body.

type frameReader struct{ r io.Reader }
type frameWriter struct{ w io.Writer }

func newFrameReader(r io.Reader) *frameReader { return &frameReader{r: r} }
func newFrameWriter(w io.Writer) *frameWriter { return &frameWriter{w: w} }

func (fr *frameReader) ReadFrame() (Frame, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(fr.r, hdr[:]); err != nil {
		return Frame{}, err
	}
	n := int(hdr[0])<<8 | int(hdr[1])
	if n == 0 || n > maxFrameBody {
		return Frame{}, &errcode.E{C: errcode.Error, Op: "bridge.ReadFrame", Msg: "bad frame length"}
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(fr.r, body); err != nil {
		return Frame{}, err
	}
	var f Frame
	if err := cbor.Unmarshal(body, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

func (fw *frameWriter) WriteFrame(f Frame) error {
	body, err := cbor.Marshal(f)
	if err != nil {
		return err
	}
	if len(body) > maxFrameBody {
		return &errcode.E{C: errcode.Error, Op: "bridge.WriteFrame", Msg: "frame too large"}
	}
	hdr := []byte{byte(len(body) >> 8), byte(len(body))}
	if _, err := fw.w.Write(hdr); err != nil {
		return err
	}
	_, err = fw.w.Write(body)
	return err
}
