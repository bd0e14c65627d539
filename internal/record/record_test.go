package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelOrderAndNames(t *testing.T) {
	order := []Level{Info, Debug, Fine, Warning, Critical, Fatal}
	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i-1], order[i])
	}
	assert.Equal(t, "WARNING", Warning.String())
	assert.Equal(t, "LEVEL(9)", Level(9).String())
	assert.False(t, Warning.IsError())
	assert.True(t, Critical.IsError())
	assert.True(t, Fatal.IsError())
	assert.Contains(t, Fatal.Colored(), "FATAL")
	assert.NotEqual(t, Fatal.String(), Fatal.Colored())
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel(" critical ")
	require.NoError(t, err)
	assert.Equal(t, Critical, l)
	_, err = ParseLevel("trace")
	assert.Error(t, err)
}

func TestRecordJSONUsesLevelNames(t *testing.T) {
	r := New("MAIN", "MainService", Fine, "hello", "main.go:1", time.Unix(0, 0).UTC())
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"level":"FINE"`)

	var back Record
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, r.ID, back.ID)
	assert.Equal(t, Fine, back.Level)
}

func TestNewAssignsDistinctIDs(t *testing.T) {
	now := time.Now()
	a := New("K", "K", Info, "same", "", now)
	b := New("K", "K", Info, "same", "", now)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestQueryMatches(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := New("NET", "Network", Warning, "slow", "", base)

	assert.True(t, Query{}.Matches(r))
	assert.True(t, Query{Service: "NET", Level: LevelPtr(Warning)}.Matches(r))
	assert.False(t, Query{Service: "MAIN"}.Matches(r))
	assert.False(t, Query{Level: LevelPtr(Info)}.Matches(r))
	assert.True(t, Query{Since: base, Until: base}.Matches(r))
	assert.False(t, Query{Since: base.Add(time.Second)}.Matches(r))
	assert.False(t, Query{Until: base.Add(-time.Second)}.Matches(r))
}
