package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	assert.True(t, ok)
	assert.Equal(t, s, got.UTC().Format(time.RFC3339))
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got, ok := ParseTime(strconv.FormatInt(ts.Unix(), 10))
	assert.True(t, ok)
	assert.Equal(t, ts.Unix(), got.Unix())

	got, ok = ParseTime(strconv.FormatInt(ts.UnixMilli(), 10))
	assert.True(t, ok)
	assert.True(t, got.Equal(ts))
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	assert.True(t, ParseTimeDefault("", def).Equal(def))
	assert.True(t, ParseTimeDefault("garbage", def).Equal(def))
}

func TestParseDurationDefault(t *testing.T) {
	assert.Equal(t, 15*time.Minute, ParseDurationDefault("15m", time.Hour))
	assert.Equal(t, 24*time.Hour, ParseDurationDefault("1d", time.Hour))
	assert.Equal(t, time.Hour, ParseDurationDefault("", time.Hour))
	assert.Equal(t, time.Hour, ParseDurationDefault("-5m", time.Hour))
	assert.Equal(t, time.Hour, ParseDurationDefault("xd", time.Hour))
}

func TestStrings(t *testing.T) {
	assert.Equal(t, 7, ParseIntDefault("7", 1))
	assert.Equal(t, 1, ParseIntDefault("seven", 1))
	assert.Equal(t, 10, ClampInt(50, 1, 10))
	assert.Equal(t, 1, ClampInt(-3, 1, 10))
	assert.Equal(t, []string{"BTCUSD", "ETHUSD"}, SplitCSV(" BTCUSD, ,ETHUSD "))
}
