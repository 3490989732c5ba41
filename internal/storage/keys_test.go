package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"roof.jpg":                "roof.jpg",
		"../../etc/passwd":        "passwd",
		`C:\photos\kitchen 1.png`: "kitchen_1.png",
		"  ":                      "file",
		"...":                     "file",
		"façade (north).heic":     "fa_ade_north_.heic",
	}
	for in, want := range cases {
		require.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}

	long := strings.Repeat("a", 300) + ".jpg"
	require.Len(t, SanitizeFilename(long), maxFilenameLength)
	require.True(t, strings.HasSuffix(SanitizeFilename(long), ".jpg"))
}

func TestReportImageKeyFormat(t *testing.T) {
	now := time.UnixMilli(1717171717000)
	key := ReportImageKey("rep-1", "roof top.jpg", now)

	require.True(t, strings.HasPrefix(key, "reports/rep-1/1717171717000_"))
	require.True(t, strings.HasSuffix(key, "_roof_top.jpg"))

	parts := strings.SplitN(strings.TrimPrefix(key, ReportPrefix("rep-1")), "_", 3)
	require.Len(t, parts, 3)
	require.Len(t, parts[1], 12)
}

func TestObjectKeysAreUnique(t *testing.T) {
	now := time.Now()
	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		key := ObjectKey("same.jpg", now)
		_, dup := seen[key]
		require.False(t, dup)
		seen[key] = struct{}{}
	}
}
