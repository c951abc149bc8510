// Package idgen generates sequential sheet-row ids like gMB017 or gs003: a
// prefix followed by a zero-padded sequence number scanned from the ids
// already present.
package idgen

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// NextIDForPrefix generates the next id for a prefix, scanning existing ids
// for the highest sequence number. A "g" is prepended when the prefix lacks
// one, and the sequence is zero-padded to 3 digits.
func NextIDForPrefix(prefix string, existingIDs []string) string {
	if !strings.HasPrefix(prefix, "g") {
		prefix = "g" + prefix
	}
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `(\d+)$`)

	maxSeq := 0
	for _, id := range existingIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		m := pattern.FindStringSubmatch(id)
		if m == nil {
			continue
		}
		if seq, err := strconv.Atoi(m[1]); err == nil && seq > maxSeq {
			maxSeq = seq
		}
	}
	return fmt.Sprintf("%s%03d", prefix, maxSeq+1)
}

// ExtractIDs collects every non-empty id from the given column of a values
// grid.
func ExtractIDs(values [][]string, idCol int) []string {
	var ids []string
	for _, row := range values {
		if idCol < 0 || idCol >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[idCol]); v != "" {
			ids = append(ids, v)
		}
	}
	return ids
}
