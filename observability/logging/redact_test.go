package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaskFieldMasksSensitiveKeys(t *testing.T) {
	masked := MaskField("privateKey", "deadbeef")
	require.Equal(t, RedactedValue, masked.Value.String())

	plain := MaskField("pool", "7")
	require.Equal(t, "7", plain.Value.String())

	empty := MaskField("secret", "")
	require.Equal(t, "", empty.Value.String())
}

func TestHandlerRedactsSensitiveAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: RedactAttr})
	logger := slog.New(handler)

	logger.Info("account imported", "address", "hx1abc", "seed", "winter absorb mirror")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "hx1abc", line["address"])
	require.Equal(t, RedactedValue, line["seed"])
}
