package domain

import (
	"fmt"
	"time"
)

// Personality is the full set of per-trader configuration knobs that
// parameterize signal fusion, risk, scheduling and learning. It is
// embedded as a value in Trader, never shared by reference.
type Personality struct {
	Capital  CapitalConfig  `json:"capital"`
	Risk     RiskConfig     `json:"risk"`
	Signals  SignalsConfig  `json:"signals"`
	Trading  TradingConfig  `json:"trading"`
	Schedule ScheduleConfig `json:"schedule"`
	Watchlist WatchlistConfig `json:"watchlist"`
	Sentiment SentimentConfig `json:"sentiment"`
	Learning  LearningConfig  `json:"learning"`
}

type CapitalConfig struct {
	InitialBudget      float64 `json:"initial_budget"`
	MaxPositionPercent float64 `json:"max_position_percent"` // fraction, e.g. 0.25
	ReserveCashPercent float64 `json:"reserve_cash_percent"`
}

type RiskConfig struct {
	Tolerance              string  `json:"tolerance"` // "conservative", "balanced", "aggressive"
	MaxDrawdownPct         float64 `json:"max_drawdown_pct"`
	StopLossPct            float64 `json:"stop_loss_pct"`
	TakeProfitPct          float64 `json:"take_profit_pct"`
	DailyLossPct           float64 `json:"daily_loss_pct"`
	TotalExposurePct       float64 `json:"total_exposure_pct"`
	LossCooldownTrades     int     `json:"loss_cooldown_trades"`
	CooldownMinutes        int     `json:"cooldown_minutes"`
	TrailingStopEnabled    bool    `json:"trailing_stop_enabled"`
	TrailingStopPct        float64 `json:"trailing_stop_pct"`
	TrailingStopActivation float64 `json:"trailing_stop_activation"`
}

// SignalsConfig carries the per-source fusion weights. Weights must sum
// to 1 across the full source set (spec.md §3); validated once at load.
type SignalsConfig struct {
	Weights      map[SourceName]float64 `json:"weights"`
	MinAgreement float64                `json:"min_agreement"` // 0..1
}

type TradingConfig struct {
	MinConfidence    float64 `json:"min_confidence"`
	MaxOpenPositions int     `json:"max_open_positions"`
	Diversification  bool    `json:"diversification"`
	PositionSizing   string  `json:"position_sizing"` // "fixed", "kelly", "volatility"
	KellyFraction    float64 `json:"kelly_fraction"`
	TargetVolatility float64 `json:"target_volatility"`
}

type ScheduleConfig struct {
	Enabled             bool     `json:"enabled"`
	CheckIntervalMinutes int     `json:"check_interval_minutes"`
	TradingHoursOnly    bool     `json:"trading_hours_only"`
	Timezone            string   `json:"timezone"`
	TradingDays         []int    `json:"trading_days"` // 0=Sunday..6=Saturday
	TradingStart        string   `json:"trading_start"` // "HH:MM"
	TradingEnd          string   `json:"trading_end"`   // "HH:MM"
	AvoidOpenMin        int      `json:"avoid_open_min"`
	AvoidCloseMin       int      `json:"avoid_close_min"`
}

type WatchlistConfig struct {
	Symbols         []string `json:"symbols"`
	UseFullWatchlist bool    `json:"use_full_watchlist"`
}

type SentimentConfig struct {
	Enabled  bool    `json:"enabled"`
	MinScore float64 `json:"min_score"`
}

type LearningConfig struct {
	Enabled              bool    `json:"enabled"`
	UpdateWeights        bool    `json:"update_weights"`
	MinTradesBeforeAdjust int    `json:"min_trades_before_adjust"`
	AccuracyWindowDays   int     `json:"accuracy_window_days"`
	MaxWeightChange      float64 `json:"max_weight_change"`
	SmallLossThreshold   float64 `json:"small_loss_threshold"` // negative quote-currency; "risk managed" cutoff
}

// TradingCalendar is the parsed, validated form of ScheduleConfig —
// parsing happens once at Personality load (Design Notes, spec.md §9).
type TradingCalendar struct {
	Location      *time.Location
	Days          map[time.Weekday]bool
	OpenHour      int
	OpenMinute    int
	CloseHour     int
	CloseMinute   int
	AvoidOpenMin  int
	AvoidCloseMin int
}

func parseHHMM(s string) (hour, minute int, err error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("invalid HH:MM time %q", s)
	}
	if _, err := fmt.Sscanf(s, "%02d:%02d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid HH:MM time %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid HH:MM time %q", s)
	}
	return hour, minute, nil
}

// BuildCalendar parses and validates the ScheduleConfig into a
// TradingCalendar. Called once at Personality validation time.
func (s ScheduleConfig) BuildCalendar() (TradingCalendar, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return TradingCalendar{}, fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
	}
	openH, openM, err := parseHHMM(s.TradingStart)
	if err != nil {
		return TradingCalendar{}, fmt.Errorf("trading_start: %w", err)
	}
	closeH, closeM, err := parseHHMM(s.TradingEnd)
	if err != nil {
		return TradingCalendar{}, fmt.Errorf("trading_end: %w", err)
	}
	days := make(map[time.Weekday]bool, len(s.TradingDays))
	for _, d := range s.TradingDays {
		if d < 0 || d > 6 {
			return TradingCalendar{}, fmt.Errorf("invalid trading day %d", d)
		}
		days[time.Weekday(d)] = true
	}
	return TradingCalendar{
		Location:      loc,
		Days:          days,
		OpenHour:      openH,
		OpenMinute:    openM,
		CloseHour:     closeH,
		CloseMinute:   closeM,
		AvoidOpenMin:  s.AvoidOpenMin,
		AvoidCloseMin: s.AvoidCloseMin,
	}, nil
}

// InWindow reports whether t falls within the trading window, already
// shifted by avoidOpen/avoidClose, on a configured trading day.
func (c TradingCalendar) InWindow(t time.Time) bool {
	local := t.In(c.Location)
	if !c.Days[local.Weekday()] {
		return false
	}
	minutesOfDay := local.Hour()*60 + local.Minute()
	start := c.OpenHour*60 + c.OpenMinute + c.AvoidOpenMin
	end := c.CloseHour*60 + c.CloseMinute - c.AvoidCloseMin
	return minutesOfDay >= start && minutesOfDay <= end
}

// Validate checks the Personality for the configuration errors
// enumerated in spec.md §7: weights must sum to 1, time strings must
// parse, every referenced source must be known.
func (p Personality) Validate() error {
	if p.Capital.InitialBudget <= 0 {
		return fmt.Errorf("capital.initial_budget must be positive")
	}
	sum := 0.0
	for src, w := range p.Signals.Weights {
		if !src.Valid() {
			return fmt.Errorf("unknown signal source %q", src)
		}
		if w < 0 || w > 1 {
			return fmt.Errorf("weight for %q out of range [0,1]: %f", src, w)
		}
		sum += w
	}
	if len(p.Signals.Weights) > 0 && (sum < 0.999 || sum > 1.001) {
		return fmt.Errorf("signal weights must sum to 1, got %f", sum)
	}
	if p.Schedule.Enabled {
		if _, err := p.Schedule.BuildCalendar(); err != nil {
			return fmt.Errorf("schedule: %w", err)
		}
	}
	if p.Trading.MinConfidence < 0 || p.Trading.MinConfidence > 1 {
		return fmt.Errorf("trading.min_confidence out of range")
	}
	if p.Signals.MinAgreement < 0 || p.Signals.MinAgreement > 1 {
		return fmt.Errorf("signals.min_agreement out of range")
	}
	return nil
}

// DefaultPersonality returns a balanced default, mirroring the
// teacher's DefaultSignalWeights "balanced" case and DefaultCircuitBreakerConfig.
func DefaultPersonality() Personality {
	return Personality{
		Capital: CapitalConfig{
			InitialBudget:      100000,
			MaxPositionPercent: 0.25,
			ReserveCashPercent: 0.10,
		},
		Risk: RiskConfig{
			Tolerance:              "balanced",
			MaxDrawdownPct:         0.20,
			StopLossPct:            0.05,
			TakeProfitPct:          0.10,
			DailyLossPct:           0.05,
			TotalExposurePct:       0.80,
			LossCooldownTrades:     3,
			CooldownMinutes:        30,
			TrailingStopActivation: 0.03,
			TrailingStopPct:        0.02,
		},
		Signals: SignalsConfig{
			Weights: map[SourceName]float64{
				SourceML:        0.25,
				SourceRL:        0.25,
				SourceSentiment: 0.25,
				SourceTechnical: 0.25,
			},
			MinAgreement: 0.66,
		},
		Trading: TradingConfig{
			MinConfidence:    0.6,
			MaxOpenPositions: 5,
			Diversification:  true,
			PositionSizing:   "fixed",
			KellyFraction:    0.5,
			TargetVolatility: 0.02,
		},
		Schedule: ScheduleConfig{
			Enabled:              true,
			CheckIntervalMinutes: 15,
			TradingHoursOnly:     true,
			Timezone:             "UTC",
			TradingDays:          []int{1, 2, 3, 4, 5},
			TradingStart:         "09:30",
			TradingEnd:           "16:00",
			AvoidOpenMin:         5,
			AvoidCloseMin:        5,
		},
		Watchlist: WatchlistConfig{UseFullWatchlist: true},
		Sentiment: SentimentConfig{Enabled: true, MinScore: 0.3},
		Learning: LearningConfig{
			Enabled:               true,
			UpdateWeights:         true,
			MinTradesBeforeAdjust: 20,
			AccuracyWindowDays:    30,
			MaxWeightChange:       0.05,
			SmallLossThreshold:    -100,
		},
	}
}
