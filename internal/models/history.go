package models

import (
	"strings"
	"time"
)

// HistoryEntry is a remembered city search. City keeps the casing it was entered with.
type HistoryEntry struct {
	City   string    `json:"city"`
	Expiry time.Time `json:"expiry"`
}

// Expired reports whether the entry is no longer visible at now.
func (e HistoryEntry) Expired(now time.Time) bool {
	return !e.Expiry.After(now)
}

// HistoryList is ordered most-recent-first.
type HistoryList []HistoryEntry

// Cities returns the city names in list order.
func (l HistoryList) Cities() []string {
	out := make([]string, len(l))
	for i, e := range l {
		out[i] = e.City
	}
	return out
}

// IndexOf returns the position of city (case-insensitive) or -1.
func (l HistoryList) IndexOf(city string) int {
	for i, e := range l {
		if strings.EqualFold(e.City, city) {
			return i
		}
	}
	return -1
}
