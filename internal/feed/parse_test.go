package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDepthBareShape(t *testing.T) {
	raw := []byte(`{
		"lastUpdateId": 160,
		"bids": [["0.0024", "14.70"], ["0.0022", "6.40"]],
		"asks": [["0.0026", "3.60"]]
	}`)

	d, err := ParseDepth("BNBBTC", raw)

	require.NoError(t, err)
	assert.Equal(t, "BNBBTC", d.Symbol)
	assert.Equal(t, int64(160), d.LastUpdateID)
	require.Len(t, d.Bids, 2)
	assert.Equal(t, 0.0024, d.Bids[0].Price)
	assert.Equal(t, 14.70, d.Bids[0].Quantity)
	require.Len(t, d.Asks, 1)
	assert.Equal(t, 0.0026, d.Asks[0].Price)
	assert.False(t, d.ReceivedAt.IsZero())
}

func TestParseDepthStreamEnvelope(t *testing.T) {
	raw := []byte(`{
		"stream": "btcusdt@depth20",
		"data": {
			"lastUpdateId": 42,
			"bids": [["100.0", "2.0"]],
			"asks": [["101.0", "1.0"]]
		}
	}`)

	d, err := ParseDepth("BTCUSDT", raw)

	require.NoError(t, err)
	assert.Equal(t, int64(42), d.LastUpdateID)
	require.Len(t, d.Bids, 1)
	assert.Equal(t, 100.0, d.Bids[0].Price)
}

func TestParseDepthNumericLevels(t *testing.T) {
	raw := []byte(`{"lastUpdateId": 7, "bids": [[100.5, 2]], "asks": [[101.5, 3]]}`)

	d, err := ParseDepth("BTCUSDT", raw)

	require.NoError(t, err)
	assert.Equal(t, 100.5, d.Bids[0].Price)
	assert.Equal(t, 2.0, d.Bids[0].Quantity)
}

func TestParseDepthRejectsMalformed(t *testing.T) {
	cases := map[string][]byte{
		"not json":        []byte(`{"lastUpdateId":`),
		"empty object":    []byte(`{}`),
		"wrong shape":     []byte(`{"e": "trade", "p": "100"}`),
		"short level":     []byte(`{"lastUpdateId": 1, "bids": [["100.0"]], "asks": []}`),
		"bad price":       []byte(`{"lastUpdateId": 1, "bids": [["abc", "1"]], "asks": []}`),
		"bool level term": []byte(`{"lastUpdateId": 1, "bids": [[true, "1"]], "asks": []}`),
	}
	for name, raw := range cases {
		_, err := ParseDepth("BTCUSDT", raw)
		assert.Error(t, err, name)
	}
}
