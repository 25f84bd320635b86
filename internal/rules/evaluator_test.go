package rules

import (
	"testing"
	"time"

	"github.com/stokalert/stokalert/internal/models"
	"github.com/stokalert/stokalert/internal/monitoring"
)

func newAlert(t models.AlertType, op models.Operator, value float64) models.Alert {
	return models.Alert{
		ID:                  "alert-1",
		UserID:              "user-1",
		Symbol:              "AAPL",
		Type:                t,
		Condition:           models.TriggerCondition{Operator: op, Value: value},
		NotificationMethods: []models.NotificationMethod{models.MethodEmail},
		IsActive:            true,
	}
}

func snapshot(q models.Quote) *models.MarketData {
	return &models.MarketData{
		Symbol:      "AAPL",
		Data:        q,
		LastUpdated: time.Now(),
		Source:      "test",
	}
}

func TestCompare(t *testing.T) {
	cases := []struct {
		name   string
		value  float64
		target float64
		op     models.Operator
		want   bool
	}{
		{"above true", 10.5, 10.0, models.OperatorAbove, true},
		{"above equal is false", 10.0, 10.0, models.OperatorAbove, false},
		{"below true", 9.5, 10.0, models.OperatorBelow, true},
		{"below equal is false", 10.0, 10.0, models.OperatorBelow, false},
		{"equal exact", 10.0, 10.0, models.OperatorEqual, true},
		{"equal within tolerance", 10.005, 10.0, models.OperatorEqual, true},
		{"equal outside tolerance", 10.02, 10.0, models.OperatorEqual, false},
		{"unsupported operator", 10.0, 5.0, models.OperatorIncrease, false},
	}
	for _, tc := range cases {
		if got := Compare(tc.value, tc.target, tc.op); got != tc.want {
			t.Errorf("%s: Compare(%v, %v, %s) = %v, want %v", tc.name, tc.value, tc.target, tc.op, got, tc.want)
		}
	}
}

// Boundary semantics: threshold-inclusive types fire exactly at the boundary
// and not one cent below it.
func TestIsTriggered_PriceConditions(t *testing.T) {
	e := New(monitoring.NewNop())

	cases := []struct {
		name  string
		alert models.Alert
		quote models.Quote
		want  bool
	}{
		{"upper limit at boundary", newAlert(models.PriceLimitUpper, models.OperatorAbove, 180), models.Quote{Price: 180}, true},
		{"upper limit above", newAlert(models.PriceLimitUpper, models.OperatorAbove, 180), models.Quote{Price: 182.45}, true},
		{"upper limit below boundary", newAlert(models.PriceLimitUpper, models.OperatorAbove, 180), models.Quote{Price: 179.99}, false},
		{"lower limit at boundary", newAlert(models.PriceLimitLower, models.OperatorBelow, 150), models.Quote{Price: 150}, true},
		{"lower limit above boundary", newAlert(models.PriceLimitLower, models.OperatorBelow, 150), models.Quote{Price: 150.01}, false},

		{"1day change up at boundary", newAlert(models.PriceChange1Day, models.OperatorAbove, 5), models.Quote{Price: 105, Open: 100}, true},
		{"1day change down counts too", newAlert(models.PriceChange1Day, models.OperatorAbove, 5), models.Quote{Price: 95, Open: 100}, true},
		{"1day change below boundary", newAlert(models.PriceChange1Day, models.OperatorAbove, 5), models.Quote{Price: 104.99, Open: 100}, false},

		{"increase from current at boundary", newAlert(models.PriceIncreaseFromCurrent, models.OperatorIncrease, 2), models.Quote{Price: 102, PreviousClose: 100}, true},
		{"increase from current below", newAlert(models.PriceIncreaseFromCurrent, models.OperatorIncrease, 2), models.Quote{Price: 101.99, PreviousClose: 100}, false},
		{"decrease from current at boundary", newAlert(models.PriceDecreaseFromCurrent, models.OperatorDecrease, 2), models.Quote{Price: 98, PreviousClose: 100}, true},
		{"decrease not triggered on rise", newAlert(models.PriceDecreaseFromCurrent, models.OperatorDecrease, 2), models.Quote{Price: 103, PreviousClose: 100}, false},

		{"percent change from open abs up", newAlert(models.PercentChangeFromOpen, models.OperatorAbove, 3), models.Quote{Price: 103, Open: 100}, true},
		{"percent change from open abs down", newAlert(models.PercentChangeFromOpen, models.OperatorAbove, 3), models.Quote{Price: 97, Open: 100}, true},
		{"percent change from open below bar", newAlert(models.PercentChangeFromOpen, models.OperatorAbove, 3), models.Quote{Price: 102.9, Open: 100}, false},
		{"percent change zero open", newAlert(models.PercentChangeFromOpen, models.OperatorAbove, 3), models.Quote{Price: 103, Open: 0}, false},

		{"percent increase no abs", newAlert(models.PercentIncreaseFromCurrent, models.OperatorIncrease, 3), models.Quote{Price: 97, PreviousClose: 100}, false},
		{"percent increase at bar", newAlert(models.PercentIncreaseFromCurrent, models.OperatorIncrease, 3), models.Quote{Price: 103, PreviousClose: 100}, true},
		{"percent decrease at bar", newAlert(models.PercentDecreaseFromCurrent, models.OperatorDecrease, 3), models.Quote{Price: 97, PreviousClose: 100}, true},
		{"percent decrease on rise", newAlert(models.PercentDecreaseFromCurrent, models.OperatorDecrease, 3), models.Quote{Price: 103, PreviousClose: 100}, false},
	}

	for _, tc := range cases {
		if got := e.IsTriggered(tc.alert, snapshot(tc.quote)); got != tc.want {
			t.Errorf("%s: IsTriggered = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsTriggered_VolumeConditions(t *testing.T) {
	e := New(monitoring.NewNop())

	cases := []struct {
		name  string
		alert models.Alert
		quote models.Quote
		want  bool
	}{
		{"spike at 20 percent", newAlert(models.VolumeSpike, models.OperatorAbove, 0), models.Quote{Volume: 1200, AvgVolume: models.Float(1000)}, true},
		{"spike below 20 percent", newAlert(models.VolumeSpike, models.OperatorAbove, 0), models.Quote{Volume: 1199, AvgVolume: models.Float(1000)}, false},
		{"spike without average", newAlert(models.VolumeSpike, models.OperatorAbove, 0), models.Quote{Volume: 5000}, false},
		{"dip at 20 percent", newAlert(models.VolumeDip, models.OperatorBelow, 0), models.Quote{Volume: 800, AvgVolume: models.Float(1000)}, true},
		{"dip below 20 percent", newAlert(models.VolumeDip, models.OperatorBelow, 0), models.Quote{Volume: 801, AvgVolume: models.Float(1000)}, false},
		{"deviation up", newAlert(models.VolumeDeviationFromAverage, models.OperatorAbove, 50), models.Quote{Volume: 1500, AvgVolume: models.Float(1000)}, true},
		{"deviation down abs", newAlert(models.VolumeDeviationFromAverage, models.OperatorAbove, 50), models.Quote{Volume: 500, AvgVolume: models.Float(1000)}, true},
		{"deviation within band", newAlert(models.VolumeDeviationFromAverage, models.OperatorAbove, 50), models.Quote{Volume: 1400, AvgVolume: models.Float(1000)}, false},
	}

	for _, tc := range cases {
		if got := e.IsTriggered(tc.alert, snapshot(tc.quote)); got != tc.want {
			t.Errorf("%s: IsTriggered = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsTriggered_TechnicalConditions(t *testing.T) {
	e := New(monitoring.NewNop())

	cases := []struct {
		name  string
		alert models.Alert
		quote models.Quote
		want  bool
	}{
		{"sma20 cross above", newAlert(models.SMA20PriceCross, models.OperatorAbove, 0), models.Quote{Price: 101, SMA20: models.Float(100)}, true},
		{"sma20 cross above not met", newAlert(models.SMA20PriceCross, models.OperatorAbove, 0), models.Quote{Price: 99, SMA20: models.Float(100)}, false},
		{"sma50 cross below", newAlert(models.SMA50PriceCross, models.OperatorBelow, 0), models.Quote{Price: 99, SMA50: models.Float(100)}, true},
		{"sma200 missing", newAlert(models.SMA200PriceCross, models.OperatorAbove, 0), models.Quote{Price: 101}, false},

		{"rsi overbought at 70", newAlert(models.RSIOverbought, models.OperatorAbove, 0), models.Quote{RSI: models.Float(70)}, true},
		{"rsi overbought below 70", newAlert(models.RSIOverbought, models.OperatorAbove, 0), models.Quote{RSI: models.Float(69.9)}, false},
		{"rsi oversold at 30", newAlert(models.RSIOversold, models.OperatorBelow, 0), models.Quote{RSI: models.Float(30)}, true},
		{"rsi oversold above 30", newAlert(models.RSIOversold, models.OperatorBelow, 0), models.Quote{RSI: models.Float(30.1)}, false},
		{"rsi limit target above", newAlert(models.RSILimitTarget, models.OperatorAbove, 55), models.Quote{RSI: models.Float(56)}, true},
		{"rsi limit target missing", newAlert(models.RSILimitTarget, models.OperatorAbove, 55), models.Quote{}, false},

		{"macd bullish", newAlert(models.MACDBullishCrossover, models.OperatorAbove, 0), models.Quote{MACD: models.Float(1.2), MACDSignal: models.Float(1.0)}, true},
		{"macd bullish level equal", newAlert(models.MACDBullishCrossover, models.OperatorAbove, 0), models.Quote{MACD: models.Float(1.0), MACDSignal: models.Float(1.0)}, false},
		{"macd bearish", newAlert(models.MACDBearishCrossover, models.OperatorBelow, 0), models.Quote{MACD: models.Float(0.8), MACDSignal: models.Float(1.0)}, true},
		{"macd missing signal", newAlert(models.MACDBullishCrossover, models.OperatorAbove, 0), models.Quote{MACD: models.Float(1.2)}, false},

		{"golden cross", newAlert(models.GoldenCross, models.OperatorAbove, 0), models.Quote{SMA50: models.Float(105), SMA200: models.Float(100)}, true},
		{"death cross", newAlert(models.DeathCross, models.OperatorBelow, 0), models.Quote{SMA50: models.Float(95), SMA200: models.Float(100)}, true},
		{"golden cross missing sma", newAlert(models.GoldenCross, models.OperatorAbove, 0), models.Quote{SMA50: models.Float(105)}, false},
	}

	for _, tc := range cases {
		if got := e.IsTriggered(tc.alert, snapshot(tc.quote)); got != tc.want {
			t.Errorf("%s: IsTriggered = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsTriggered_52WeekAndFundamentals(t *testing.T) {
	e := New(monitoring.NewNop())

	cases := []struct {
		name  string
		alert models.Alert
		quote models.Quote
		want  bool
	}{
		{"52w high at boundary", newAlert(models.FiftyTwoWeekHigh, models.OperatorAbove, 0), models.Quote{Price: 200, Week52High: models.Float(200)}, true},
		{"52w high below", newAlert(models.FiftyTwoWeekHigh, models.OperatorAbove, 0), models.Quote{Price: 199.99, Week52High: models.Float(200)}, false},
		{"52w low at boundary", newAlert(models.FiftyTwoWeekLow, models.OperatorBelow, 0), models.Quote{Price: 120, Week52Low: models.Float(120)}, true},
		{"52w low above", newAlert(models.FiftyTwoWeekLow, models.OperatorBelow, 0), models.Quote{Price: 120.01, Week52Low: models.Float(120)}, false},

		// price 180 vs high 200 is 10% off the high
		{"pct from 52w high below threshold", newAlert(models.PercentFrom52WeekHigh, models.OperatorBelow, 15), models.Quote{Price: 180, Week52High: models.Float(200)}, true},
		{"pct from 52w high above threshold", newAlert(models.PercentFrom52WeekHigh, models.OperatorAbove, 5), models.Quote{Price: 180, Week52High: models.Float(200)}, true},
		{"pct from 52w high not met", newAlert(models.PercentFrom52WeekHigh, models.OperatorAbove, 15), models.Quote{Price: 180, Week52High: models.Float(200)}, false},
		// price 132 vs low 120 is 10% above the low
		{"pct from 52w low above threshold", newAlert(models.PercentFrom52WeekLow, models.OperatorAbove, 5), models.Quote{Price: 132, Week52Low: models.Float(120)}, true},
		{"pct from 52w low missing field", newAlert(models.PercentFrom52WeekLow, models.OperatorAbove, 5), models.Quote{Price: 132}, false},

		{"market cap upper at boundary", newAlert(models.MarketCapUpperLimit, models.OperatorAbove, 1e12), models.Quote{Price: 1, MarketCap: models.Float(1e12)}, true},
		{"market cap lower", newAlert(models.MarketCapLowerLimit, models.OperatorBelow, 1e9), models.Quote{Price: 1, MarketCap: models.Float(9e8)}, true},
		{"market cap missing", newAlert(models.MarketCapUpperLimit, models.OperatorAbove, 1e12), models.Quote{Price: 1}, false},
		{"pe upper at boundary", newAlert(models.PERatioUpperLimit, models.OperatorAbove, 30), models.Quote{Price: 1, PERatio: models.Float(30)}, true},
		{"pe lower above boundary", newAlert(models.PERatioLowerLimit, models.OperatorBelow, 10), models.Quote{Price: 1, PERatio: models.Float(10.5)}, false},
	}

	for _, tc := range cases {
		if got := e.IsTriggered(tc.alert, snapshot(tc.quote)); got != tc.want {
			t.Errorf("%s: IsTriggered = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsTriggered_UnknownTypeAndNilData(t *testing.T) {
	e := New(monitoring.NewNop())

	unknown := newAlert(models.AlertType("made_up_condition"), models.OperatorAbove, 1)
	if e.IsTriggered(unknown, snapshot(models.Quote{Price: 100})) {
		t.Error("unknown alert type must not trigger")
	}

	known := newAlert(models.PriceLimitUpper, models.OperatorAbove, 1)
	if e.IsTriggered(known, nil) {
		t.Error("nil market data must not trigger")
	}
}
