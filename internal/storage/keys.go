package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

const maxFilenameLength = 100

// SanitizeFilename reduces a client supplied name to a safe object key segment.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	if len(name) > maxFilenameLength {
		name = name[len(name)-maxFilenameLength:]
	}
	return name
}

// ObjectKey builds a globally unique key for an ad hoc upload:
// {unixMillis}_{random}_{sanitizedFilename}.
func ObjectKey(filename string, now time.Time) string {
	return fmt.Sprintf("%d_%s_%s", now.UnixMilli(), randomSuffix(), SanitizeFilename(filename))
}

// ReportPrefix is the folder holding every image of a report.
func ReportPrefix(reportID string) string {
	return "reports/" + reportID + "/"
}

// ReportImageKey builds the key of a report image under ReportPrefix.
func ReportImageKey(reportID, filename string, now time.Time) string {
	return ReportPrefix(reportID) + ObjectKey(filename, now)
}

func randomSuffix() string {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf[:])
}
