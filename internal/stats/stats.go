// Package stats はステータス履歴から派生指標を算出する。
// すべて純粋関数であり、DBや時計には依存しない。
package stats

import (
	"fmt"
	"sort"

	"github.com/hitoshi/presenceman/internal/model"
)

// アクティビティ水準の区分。オンライン率に基づく。
const (
	ActivityInactive = "inactive"
	ActivityLow      = "low"
	ActivityMedium   = "medium"
	ActivityHigh     = "high"
)

// 多くのプレイヤーが最も活発になる現地時刻（時）。
// タイムゾーン推定のアンカーとして使用する。
const assumedPeakLocalHour = 20

// Summary はアカウント1件分の派生指標。
type Summary struct {
	SampleCount   int     `json:"sampleCount"`
	OnlineRatio   float64 `json:"onlineRatio"`
	InGameRatio   float64 `json:"inGameRatio"`
	ActivityLevel string  `json:"activityLevel"`
	PeakHoursUTC  []int   `json:"peakHoursUtc"`
	TimezoneGuess string  `json:"timezoneGuess"`
}

// Summarize は履歴標本から指標一式を算出する。
func Summarize(samples []model.StatusSample) Summary {
	return Summary{
		SampleCount:   len(samples),
		OnlineRatio:   OnlineRatio(samples),
		InGameRatio:   InGameRatio(samples),
		ActivityLevel: ActivityLevel(samples),
		PeakHoursUTC:  PeakHours(samples, 3),
		TimezoneGuess: GuessTimezone(samples),
	}
}

// OnlineRatio は標本全体に占めるオンライン標本の割合を返す。
func OnlineRatio(samples []model.StatusSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	online := 0
	for _, s := range samples {
		if s.IsOnline {
			online++
		}
	}
	return float64(online) / float64(len(samples))
}

// InGameRatio は標本全体に占めるゲーム中標本の割合を返す。
func InGameRatio(samples []model.StatusSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	inGame := 0
	for _, s := range samples {
		if s.IsInGame {
			inGame++
		}
	}
	return float64(inGame) / float64(len(samples))
}

// ActivityLevel はオンライン率をアクティビティ水準に区分する。
// 標本がない場合はinactiveを返す。
func ActivityLevel(samples []model.StatusSample) string {
	ratio := OnlineRatio(samples)
	switch {
	case len(samples) == 0 || ratio == 0:
		return ActivityInactive
	case ratio < 0.2:
		return ActivityLow
	case ratio < 0.5:
		return ActivityMedium
	default:
		return ActivityHigh
	}
}

// PeakHours はオンライン標本が多いUTC時間帯を最大k件返す。
// 件数の降順、同数の場合は時刻の昇順で並べる。オンライン標本がなければnilを返す。
func PeakHours(samples []model.StatusSample, k int) []int {
	counts := make(map[int]int)
	for _, s := range samples {
		if s.IsOnline {
			counts[s.RecordedAt.UTC().Hour()]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	hours := make([]int, 0, len(counts))
	for h := range counts {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool {
		if counts[hours[i]] != counts[hours[j]] {
			return counts[hours[i]] > counts[hours[j]]
		}
		return hours[i] < hours[j]
	})

	if k > 0 && len(hours) > k {
		hours = hours[:k]
	}
	return hours
}

// GuessTimezone は最多オンライン時間帯が現地20時に当たると仮定して
// UTCオフセットを推定する。標本がなければ"unknown"を返す。
func GuessTimezone(samples []model.StatusSample) string {
	peaks := PeakHours(samples, 1)
	if len(peaks) == 0 {
		return "unknown"
	}

	offset := assumedPeakLocalHour - peaks[0]
	// オフセットを-11〜+12の範囲に正規化する
	for offset > 12 {
		offset -= 24
	}
	for offset < -11 {
		offset += 24
	}

	if offset == 0 {
		return "UTC"
	}
	return fmt.Sprintf("UTC%+d", offset)
}
