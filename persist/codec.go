package persist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	xdr "github.com/rasky/go-xdr/xdr2"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// Codec converts a Snapshot to and from a flat byte representation
type Codec interface {
	Name() string
	Encode(w io.Writer, snap *Snapshot) error
	Decode(r io.Reader) (*Snapshot, error)
}

// Codec names accepted by [CodecByName]
const (
	CodecXDR  = "xdr"
	CodecYAML = "yaml"
)

// CodecByName returns the codec registered under name; "" selects xdr
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecXDR:
		return XDRCodec{}, nil
	case CodecYAML:
		return YAMLCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown snapshot codec: %q", name)
	}
}

// XDRCodec is the compact binary format:
//
//	magic[4] | version uint32 (big endian) | blake3-256(body)[32] | XDR(body)
type XDRCodec struct{}

const xdrHeaderLen = len(Magic) + 4 + 32

func (XDRCodec) Name() string { return CodecXDR }

func (XDRCodec) Encode(w io.Writer, snap *Snapshot) error {
	var body bytes.Buffer
	if _, err := xdr.Marshal(&body, snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	header := make([]byte, 0, xdrHeaderLen)
	header = append(header, Magic...)
	header = binary.BigEndian.AppendUint32(header, snap.Version)
	sum := blake3.Sum256(body.Bytes())
	header = append(header, sum[:]...)

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}

func (XDRCodec) Decode(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < xdrHeaderLen {
		return nil, corruptf("truncated header (%d bytes)", len(data))
	}
	if string(data[:len(Magic)]) != Magic {
		return nil, corruptf("bad magic %q", data[:len(Magic)])
	}
	version := binary.BigEndian.Uint32(data[len(Magic):])
	if version != FormatVersion {
		return nil, corruptf("unsupported format version %d", version)
	}
	body := data[xdrHeaderLen:]
	sum := blake3.Sum256(body)
	if !bytes.Equal(sum[:], data[len(Magic)+4:xdrHeaderLen]) {
		return nil, corruptf("checksum mismatch")
	}

	var snap Snapshot
	if _, err := xdr.Unmarshal(bytes.NewReader(body), &snap); err != nil {
		return nil, corruptf("decode body: %v", err)
	}
	if snap.Version != version {
		return nil, corruptf("header version %d does not match body version %d", version, snap.Version)
	}
	return &snap, nil
}

// YAMLCodec is a human-readable format, mostly useful for inspecting and
// hand-editing small trees. It carries no checksum.
type YAMLCodec struct{}

type yamlDocument struct {
	Magic    string `yaml:"magic"`
	Snapshot `yaml:",inline"`
}

func (YAMLCodec) Name() string { return CodecYAML }

func (YAMLCodec) Encode(w io.Writer, snap *Snapshot) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(yamlDocument{Magic: Magic, Snapshot: *snap}); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return enc.Close()
}

func (YAMLCodec) Decode(r io.Reader) (*Snapshot, error) {
	var doc yamlDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, corruptf("empty document")
		}
		return nil, corruptf("decode yaml: %v", err)
	}
	if doc.Magic != Magic {
		return nil, corruptf("bad magic %q", doc.Magic)
	}
	if doc.Version != FormatVersion {
		return nil, corruptf("unsupported format version %d", doc.Version)
	}
	return &doc.Snapshot, nil
}

// encodeRecord and decodeRecord XDR-encode a single record (badger values)
func encodeRecord(v any) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte, v any) error {
	if _, err := xdr.Unmarshal(bytes.NewReader(data), v); err != nil {
		return corruptf("decode record: %v", err)
	}
	return nil
}
