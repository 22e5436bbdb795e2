// Package stats tracks per-turn streaming metrics (time to first token,
// duration, answer size, outcome) and persists them to
// ~/.cuecard/stats.json.
package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/arin/cuecard/internal/config"
)

const (
	fileName   = "stats.json"
	maxRecords = 1000
)

// Outcome values mirror the terminal stream states.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Record is a single answered (or abandoned) turn.
type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	Subcommand   string    `json:"subcommand,omitempty"` // "ask" or "chat"
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Images       int       `json:"images,omitempty"`
	FirstTokenMs int64     `json:"first_token_ms,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	Chars        int       `json:"chars"`
	Outcome      string    `json:"outcome"`
}

// Summary is the aggregated stats dashboard.
type Summary struct {
	TotalTurns        int            `json:"total_turns"`
	CompletionRate    float64        `json:"completion_rate"`
	AvgFirstTokenMs   int64          `json:"avg_first_token_ms"`
	AvgDurationMs     int64          `json:"avg_duration_ms"`
	TotalChars        int            `json:"total_chars"`
	OutcomeBreakdown  map[string]int `json:"outcome_breakdown"`
	ProviderBreakdown map[string]int `json:"provider_breakdown"`
	SubcmdBreakdown   map[string]int `json:"subcmd_breakdown"`
	TopModels         []ModelCount   `json:"top_models"`
	TodayCount        int            `json:"today_count"`
	ThisWeekCount     int            `json:"this_week_count"`
}

// ModelCount pairs a model with its usage count.
type ModelCount struct {
	Model string `json:"model"`
	Count int    `json:"count"`
}

var fileMu sync.Mutex

func statsPath() string {
	return filepath.Join(config.Dir(), fileName)
}

// Turn converts raw measurements into a record.
func Turn(subcommand, provider, model string, images int, firstToken, duration time.Duration, chars int, outcome string) Record {
	return Record{
		Subcommand:   subcommand,
		Provider:     provider,
		Model:        model,
		Images:       images,
		FirstTokenMs: firstToken.Milliseconds(),
		DurationMs:   duration.Milliseconds(),
		Chars:        chars,
		Outcome:      outcome,
	}
}

// Save appends a new record to the stats file.
func Save(r Record) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	records, _ := loadAll()
	records = append(records, r)
	if len(records) > maxRecords {
		records = records[len(records)-maxRecords:]
	}

	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(statsPath(), data, 0o600)
}

// LoadAll returns all stored records.
func LoadAll() ([]Record, error) {
	fileMu.Lock()
	defer fileMu.Unlock()
	return loadAll()
}

func loadAll() ([]Record, error) {
	data, err := os.ReadFile(statsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Summarize computes aggregated stats from all records.
func Summarize() (*Summary, error) {
	records, err := LoadAll()
	if err != nil {
		return nil, err
	}
	return summarize(records, time.Now()), nil
}

func summarize(records []Record, now time.Time) *Summary {
	s := &Summary{
		TotalTurns:        len(records),
		OutcomeBreakdown:  map[string]int{},
		ProviderBreakdown: map[string]int{},
		SubcmdBreakdown:   map[string]int{},
	}
	if len(records) == 0 {
		return s
	}

	var totalFirst, totalDur int64
	var firstCount, completed int
	modelFreq := map[string]int{}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	weekAgo := now.AddDate(0, 0, -7)

	for _, r := range records {
		if r.Outcome == OutcomeCompleted {
			completed++
		}
		if r.FirstTokenMs > 0 {
			totalFirst += r.FirstTokenMs
			firstCount++
		}
		totalDur += r.DurationMs
		s.TotalChars += r.Chars
		if r.Outcome != "" {
			s.OutcomeBreakdown[r.Outcome]++
		}
		if r.Provider != "" {
			s.ProviderBreakdown[r.Provider]++
		}
		if r.Subcommand != "" {
			s.SubcmdBreakdown[r.Subcommand]++
		}
		if r.Model != "" {
			modelFreq[r.Model]++
		}
		if !r.Timestamp.Before(today) {
			s.TodayCount++
		}
		if r.Timestamp.After(weekAgo) {
			s.ThisWeekCount++
		}
	}

	s.CompletionRate = float64(completed) / float64(len(records)) * 100
	s.AvgDurationMs = totalDur / int64(len(records))
	if firstCount > 0 {
		s.AvgFirstTokenMs = totalFirst / int64(firstCount)
	}
	s.TopModels = topN(modelFreq, 5)
	return s
}

func topN(freq map[string]int, n int) []ModelCount {
	all := make([]ModelCount, 0, len(freq))
	for model, count := range freq {
		all = append(all, ModelCount{Model: model, Count: count})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Model < all[j].Model
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}
