package test

import (
	"encoding/hex"
	"fmt"
	"strings"

	"go.einride.tech/can"
)

// HexDump provides a string of bytes in hex format
func HexDump(data []byte) string {
	ret := make([]string, len(data))
	for i, b := range data {
		ret[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(ret, " ")
}

// ParseHex decodes hex data, ignoring spaces, colons, and 0x prefixes
func ParseHex(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, "0x", "")
	s = strings.NewReplacer(" ", "", ":", "", ",", "", "\n", "", "\t", "").Replace(s)
	return hex.DecodeString(s)
}

// FrameDump formats a CAN frame as id#data
func FrameDump(f can.Frame) string {
	return fmt.Sprintf("%08X#%v", f.ID, HexDump(f.Data[:f.Length]))
}
