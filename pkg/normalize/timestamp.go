package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/mihailescuandrei/market-news-stream/pkg/domain"
)

// isoLayouts are tried in order for ISO-8601 style provider values
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// CompactTime parses YYYYMMDDTHHMM[SS] positionally: year[0:4] month[4:6] day[6:8] hour[9:11] minute[11:13].
// Seconds are ignored. The instant is taken as UTC. Unparsable input is kept as raw.
func CompactTime(s string) domain.Timestamp {
	raw := s
	s = strings.TrimSpace(s)
	if len(s) < 13 || s[8] != 'T' {
		return domain.Timestamp{Raw: raw}
	}

	parts := [5]int{}
	bounds := [5][2]int{{0, 4}, {4, 6}, {6, 8}, {9, 11}, {11, 13}}
	for i, b := range bounds {
		v, err := strconv.Atoi(s[b[0]:b[1]])
		if err != nil || v < 0 {
			return domain.Timestamp{Raw: raw}
		}
		parts[i] = v
	}

	year, month, day, hour, minute := parts[0], parts[1], parts[2], parts[3], parts[4]
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 {
		return domain.Timestamp{Raw: raw}
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	if t.Day() != day { // e.g. Feb 30 normalizes into March
		return domain.Timestamp{Raw: raw}
	}
	return domain.Timestamp{Time: t, Raw: raw}
}

// EpochTime converts unix seconds. Non-positive values are treated as missing.
func EpochTime(sec int64) domain.Timestamp {
	raw := strconv.FormatInt(sec, 10)
	if sec <= 0 {
		return domain.Timestamp{Raw: raw}
	}
	return domain.Timestamp{Time: time.Unix(sec, 0).UTC(), Raw: raw}
}

// ISOTime parses ISO-8601 values, zone-less values are taken as UTC
func ISOTime(s string) domain.Timestamp {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return domain.Timestamp{Raw: s}
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return domain.Timestamp{Time: t.UTC(), Raw: s}
		}
	}
	return domain.Timestamp{Raw: s}
}
