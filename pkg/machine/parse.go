package machine

import (
	"bytes"
	"compress/flate"
	"encoding/base32"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// canonicalEncoding is the base32 alphabet used for a machine's canonical
// string form: standard alphabet, no padding, so the string is safe to
// embed in URLs and config files without escaping.
var canonicalEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Serialize produces the canonical string form of m: version byte 0x02,
// followed by a deflate-compressed CBOR encoding of the machine, followed
// by base32 encoding of the whole thing.
func (m *Machine) Serialize() (string, error) {
	w := toWireMachine(m)
	payload, err := cborEncMode.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("machine: encoding cbor: %w", err)
	}

	var compressed bytes.Buffer
	compressed.WriteByte(Version)
	fw, err := flate.NewWriter(&compressed, flate.BestCompression)
	if err != nil {
		return "", fmt.Errorf("machine: building deflate writer: %w", err)
	}
	if _, err := fw.Write(payload); err != nil {
		return "", fmt.Errorf("machine: deflating: %w", err)
	}
	if err := fw.Close(); err != nil {
		return "", fmt.Errorf("machine: deflating: %w", err)
	}

	return canonicalEncoding.EncodeToString(compressed.Bytes()), nil
}

// Parse reconstructs and validates a Machine from its canonical string
// form. Parse rejects strings whose decompressed payload would exceed
// MaxDecompressedSize, protecting the caller from zip-bomb-style inputs.
func Parse(s string) (*Machine, error) {
	raw, err := canonicalEncoding.DecodeString(s)
	if err != nil {
		return nil, parseErr(ParseCorrupt, fmt.Errorf("base32 decode: %w", err))
	}
	if len(raw) == 0 {
		return nil, parseErr(ParseCorrupt, fmt.Errorf("empty input"))
	}

	version := raw[0]
	body := raw[1:]

	switch version {
	case Version:
		return parseV2(body)
	case VersionLegacyV1:
		return parseLegacyV1(body)
	default:
		return nil, parseErr(ParseUnsupportedVersion, fmt.Errorf("version byte 0x%02x is not supported", version))
	}
}

func parseV2(body []byte) (*Machine, error) {
	fr := flate.NewReader(bytes.NewReader(body))
	defer fr.Close()

	limited := io.LimitReader(fr, MaxDecompressedSize+1)
	payload, err := io.ReadAll(limited)
	if err != nil {
		return nil, parseErr(ParseCorrupt, fmt.Errorf("inflating: %w", err))
	}
	if len(payload) > MaxDecompressedSize {
		return nil, parseErr(ParseOversizedDecompressed, fmt.Errorf("decompressed payload exceeds %d bytes", MaxDecompressedSize))
	}

	var w wireMachine
	if err := cbor.Unmarshal(payload, &w); err != nil {
		return nil, parseErr(ParseCorrupt, fmt.Errorf("decoding cbor: %w", err))
	}

	m, err := w.toMachine()
	if err != nil {
		return nil, parseErr(ParseInvalid, err)
	}
	return m, nil
}
