package ibus

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeText(t *testing.T) {
	got, err := decodeText(ibusText("水"))
	require.NoError(t, err)
	assert.Equal(t, "水", got)

	got, err = decodeText([]any{"IBusText", map[string]dbus.Variant{}, "raw"})
	require.NoError(t, err)
	assert.Equal(t, "raw", got)

	_, err = decodeText(dbus.MakeVariant("plain"))
	assert.Error(t, err)

	_, err = decodeText([]any{"IBusAttrList", map[string]dbus.Variant{}, "x"})
	assert.Error(t, err)

	_, err = decodeText([]any{"IBusText", map[string]dbus.Variant{}, uint32(1)})
	assert.Error(t, err)
}
