// Package slots implements a doctor's slot ledger: the bookable (date, time)
// entries a doctor publishes and their booked flag.
package slots

import (
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/Hasnainmunshi/diagnostic-management/internal/apperr"
)

const DateLayout = "2006-01-02"

type Entry struct {
	Date   time.Time
	Time   string
	Booked bool
}

// Key identifies an entry within one ledger.
type Key struct {
	Date time.Time
	Time string
}

func (e Entry) Key() Key { return Key{Date: e.Date, Time: e.Time} }

func (k Key) equal(o Key) bool { return k.Time == o.Time && k.Date.Equal(o.Date) }

func (k Key) String() string { return k.Date.Format(DateLayout) + " " + k.Time }

// ParseDate parses YYYY-MM-DD into a UTC midnight civil date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// ParseClock normalizes "9:05" or "09:05" to "09:05".
func ParseClock(s string) (string, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return t.Format("15:04"), nil
}

// Today is the civil date of now in loc, as a UTC midnight value comparable with parsed dates.
func Today(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Ledger is an in-memory view of one doctor's entries. It is not safe for
// concurrent use; persisted ledgers are mutated through Store.
type Ledger struct {
	entries []Entry
	max     int
}

func NewLedger(max int, entries ...Entry) *Ledger {
	l := &Ledger{max: max}
	for _, e := range entries {
		if l.find(e.Key()) < 0 {
			l.entries = append(l.entries, e)
		}
	}
	l.sort()
	return l
}

func (l *Ledger) Len() int { return len(l.entries) }

func (l *Ledger) Entries() []Entry { return slices.Clone(l.entries) }

func (l *Ledger) IsFree(k Key) bool {
	i := l.find(k)
	return i < 0 || !l.entries[i].Booked
}

// Claim books k, inserting it when absent. It fails with a slot conflict when
// k is already booked or inserting would exceed the cap.
func (l *Ledger) Claim(k Key) error {
	i := l.find(k)
	if i >= 0 {
		if l.entries[i].Booked {
			return apperr.SlotConflict("", "slot "+k.String()+" is already booked")
		}
		l.entries[i].Booked = true
		return nil
	}
	if l.max > 0 && len(l.entries) >= l.max {
		return apperr.SlotConflict("", "ledger full")
	}
	l.entries = append(l.entries, Entry{Date: k.Date, Time: k.Time, Booked: true})
	l.sort()
	return nil
}

// Release frees k. Releasing a free or unknown slot does nothing.
func (l *Ledger) Release(k Key) {
	if i := l.find(k); i >= 0 {
		l.entries[i].Booked = false
	}
}

// Add inserts free entries, skipping keys already present, and reports how
// many were added. Nothing is added when the batch would exceed the cap.
func (l *Ledger) Add(keys ...Key) (int, error) {
	var fresh []Key
	for _, k := range keys {
		if l.find(k) >= 0 || slices.ContainsFunc(fresh, k.equal) {
			continue
		}
		fresh = append(fresh, k)
	}
	if l.max > 0 && len(l.entries)+len(fresh) > l.max {
		return 0, apperr.SlotConflict("", "ledger full")
	}
	for _, k := range fresh {
		l.entries = append(l.entries, Entry{Date: k.Date, Time: k.Time})
	}
	l.sort()
	return len(fresh), nil
}

// Available yields free entries dated on or after today in date/time order.
// The sequence reads a snapshot taken at call time and can be ranged over repeatedly.
func (l *Ledger) Available(today time.Time) iter.Seq[Entry] {
	snapshot := slices.Clone(l.entries)
	return func(yield func(Entry) bool) {
		for _, e := range snapshot {
			if e.Booked || e.Date.Before(today) {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

func (l *Ledger) find(k Key) int {
	return slices.IndexFunc(l.entries, func(e Entry) bool { return k.equal(e.Key()) })
}

func (l *Ledger) sort() {
	slices.SortFunc(l.entries, func(a, b Entry) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.Time, b.Time)
	})
}
