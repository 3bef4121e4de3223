package bitfield_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kestrel/internal/bitfield"
)

type pageFlags struct {
	Present  bool   `bitfield:"1"`
	Writable bool   `bitfield:"1"`
	User     bool   `bitfield:"1"`
	Reserved uint32 `bitfield:"29"`
}

func TestPackUnpackRoundTrip(t *testing.T) {
	in := pageFlags{Present: true, Writable: true, User: false, Reserved: 7}

	packed, err := bitfield.Pack(&in, &bitfield.Config{NumBits: 32})
	require.NoError(t, err)

	var out pageFlags
	require.NoError(t, bitfield.Unpack(packed, &out, nil))
	require.Equal(t, in, out)
}

func TestPackRejectsOverflow(t *testing.T) {
	in := pageFlags{Reserved: 1 << 30}
	_, err := bitfield.Pack(&in, nil)
	require.Error(t, err)
}

func TestPackRejectsNonStruct(t *testing.T) {
	x := 5
	_, err := bitfield.Pack(x, nil)
	require.Error(t, err)
}
