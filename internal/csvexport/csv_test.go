package csvexport

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Plain(t *testing.T) {
	out := Encode([]string{"id", "name"}, [][]any{{1, "a"}, {2, "b"}})
	assert.Equal(t, "id,name\n1,a\n2,b", out)
}

func TestEncode_HeadersOnly(t *testing.T) {
	assert.Equal(t, "id,original_url", Encode([]string{"id", "original_url"}, nil))
}

func TestEncode_Escaping(t *testing.T) {
	out := Encode([]string{"v"}, [][]any{
		{`say "hi"`},
		{"a,b"},
		{"line1\nline2"},
	})
	assert.Equal(t, "v\n\"say \"\"hi\"\"\"\n\"a,b\"\n\"line1\nline2\"", out)
}

func TestEncode_Scalars(t *testing.T) {
	id := uuid.MustParse("6f1c1a52-0f4e-4a57-9d0f-0d3c1c7d1b2a")
	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("X", 3*3600))
	var nilTime *time.Time

	out := Encode([]string{"a", "b", "c", "d", "e", "f", "g"}, [][]any{
		{nil, int64(42), 1.5, true, id, ts, nilTime},
	})

	assert.Equal(t,
		"a,b,c,d,e,f,g\n,42,1.5,true,6f1c1a52-0f4e-4a57-9d0f-0d3c1c7d1b2a,2024-03-01T09:30:00.000Z,",
		out,
	)
}

func TestEncode_RoundTrip(t *testing.T) {
	headers := []string{"id", "original_url", "note"}
	values := [][]string{
		{"1", "https://example.com/?a=1,b=2", `quoted "value"`},
		{"2", "https://example.com/x", "multi\nline"},
		{"3", "", "plain"},
	}

	rows := make([][]any, len(values))
	for i, row := range values {
		rows[i] = []any{row[0], row[1], row[2]}
	}

	records, err := csv.NewReader(strings.NewReader(Encode(headers, rows))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, len(values)+1)

	assert.Equal(t, headers, records[0])
	for i, row := range values {
		assert.Equal(t, row, records[i+1])
	}
}
