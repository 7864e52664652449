package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HexBytes is a []byte which encodes as hexadecimal in json, as opposed to the
// base64 default. The "0x" prefix is accepted but not required on input.
type HexBytes []byte

func (b HexBytes) String() string {
	return hex.EncodeToString(b)
}

// FromString decodes a hex string into b, accepting an optional "0x" prefix.
func (b *HexBytes) FromString(str string) error {
	var err error
	(*b), err = hex.DecodeString(strings.TrimPrefix(str, "0x"))
	return err
}

func (b HexBytes) MarshalJSON() ([]byte, error) {
	enc := make([]byte, hex.EncodedLen(len(b))+4)
	enc[0] = '"'
	enc[1] = '0'
	enc[2] = 'x'
	hex.Encode(enc[3:], b)
	enc[len(enc)-1] = '"'
	return enc, nil
}

func (b *HexBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid JSON string: %q", data)
	}
	data = data[1 : len(data)-1]
	// strip optional "0x" prefix
	if len(data) >= 2 && data[0] == '0' && (data[1] == 'x' || data[1] == 'X') {
		data = data[2:]
	}
	decLen := hex.DecodedLen(len(data))
	if cap(*b) < decLen {
		*b = make([]byte, decLen)
	}
	if _, err := hex.Decode(*b, data); err != nil {
		return err
	}
	return nil
}

// HexStringToHexBytes converts a hex string to a HexBytes. It strips a leading
// "0x" prefix if present and panics if the string is not valid hexadecimal.
func HexStringToHexBytes(hexString string) HexBytes {
	b, err := hex.DecodeString(strings.TrimPrefix(hexString, "0x"))
	if err != nil {
		panic(fmt.Sprintf("invalid hex string: (%s): %v", hexString, err))
	}
	return b
}
