package gas

import (
	"math"
	"testing"
	"time"

	"poly-trader/internal/config"
)

func TestIsOffPeakTime_WindowBounds(t *testing.T) {
	advisor := newTestAdvisor(0)

	expectations := map[int]bool{
		0: false, 1: false,
		2: true, 3: true, 4: true, 5: true,
		6: false, 12: false, 23: false,
	}
	for hour, want := range expectations {
		advisor.now = fixedHour(hour)
		if got := advisor.IsOffPeakTime(); got != want {
			t.Errorf("hour %d: IsOffPeakTime=%v, want %v", hour, got, want)
		}
	}
}

func TestTimeToOffPeak_WrapsPastMidnight(t *testing.T) {
	advisor := newTestAdvisor(0)

	advisor.now = fixedHour(23)
	if got := advisor.TimeToOffPeak(); got != 3*time.Hour {
		t.Errorf("at hour 23 expected 3h to window, got %s", got)
	}

	advisor.now = fixedHour(3)
	if got := advisor.TimeToOffPeak(); got != 0 {
		t.Errorf("inside window expected 0, got %s", got)
	}

	advisor.now = fixedHour(6)
	if got := advisor.TimeToOffPeak(); got != 20*time.Hour {
		t.Errorf("at hour 6 expected 20h to next window, got %s", got)
	}
}

func TestEstimateGasCost(t *testing.T) {
	advisor := newTestAdvisor(0.65)

	// 150000 * 30 / 1e9 * 0.65
	want := 150000.0 * 30 / 1e9 * 0.65
	if got := advisor.EstimateGasCost(0, 0, 0); math.Abs(got-want) > 1e-12 {
		t.Errorf("default estimate mismatch: got %.10f want %.10f", got, want)
	}

	wantFAK := 120000.0 * 30 / 1e9 * 0.65
	if got := advisor.EstimateFAKGasCost(0, 0); math.Abs(got-wantFAK) > 1e-12 {
		t.Errorf("FAK estimate mismatch: got %.10f want %.10f", got, wantFAK)
	}
	if advisor.EstimateFAKGasCost(0, 0) >= advisor.EstimateGasCost(0, 0, 0) {
		t.Error("FAK estimate must be below the resting-order estimate")
	}

	explicit := advisor.EstimateGasCost(100000, 50, 1.0)
	if math.Abs(explicit-100000.0*50/1e9) > 1e-12 {
		t.Errorf("explicit estimate mismatch: got %.10f", explicit)
	}
}

func TestIsGasCostAcceptable(t *testing.T) {
	advisor := newTestAdvisor(0.65)

	// 默认参数下成本约 0.0029 USD：100 USD 交易远低于 0.1% 阈值。
	if !advisor.IsGasCostAcceptable(100, 0, 0, 0) {
		t.Error("expected acceptable gas cost for 100 USD trade")
	}
	// 1 USD 交易在极端 gwei 下超阈值。
	if advisor.IsGasCostAcceptable(1, 0, 5000, 0) {
		t.Error("expected unacceptable gas cost for 1 USD trade at 5000 gwei")
	}
	if advisor.IsGasCostAcceptable(0, 0, 0, 0) {
		t.Error("non-positive trade size is never acceptable")
	}
}

func TestRecommendations(t *testing.T) {
	advisor := newTestAdvisor(0.65)

	advisor.now = fixedHour(12)
	recs := advisor.Recommendations(100, 30, 0)
	if len(recs) != 0 {
		t.Errorf("expected no advisories for a healthy trade, got %v", recs)
	}

	// 金额过小 + 临近窗口 + gas 价超上限。
	advisor.now = fixedHour(23)
	recs = advisor.Recommendations(10, 200, 0)
	kinds := make(map[RecommendationKind]bool, len(recs))
	for _, rec := range recs {
		kinds[rec.Kind] = true
	}
	for _, want := range []RecommendationKind{RecommendationUndersized, RecommendationNearOffPeak, RecommendationGasPriceCap} {
		if !kinds[want] {
			t.Errorf("missing advisory %s in %v", want, recs)
		}
	}
}

func TestIsGasEfficient(t *testing.T) {
	advisor := newTestAdvisor(0.65)

	if advisor.IsGasEfficient(49.99) {
		t.Error("below minimum trade size must be inefficient")
	}
	if !advisor.IsGasEfficient(50) {
		t.Error("minimum trade size is efficient")
	}
}

func newTestAdvisor(tokenPrice float64) *Advisor {
	if tokenPrice <= 0 {
		tokenPrice = 0.65
	}
	return NewAdvisor(config.GasConfig{
		MinTradeSizeUSD:     50,
		OffPeakStartHourUTC: 2,
		OffPeakEndHourUTC:   6,
		MaxGasPriceGwei:     100,
		NativeTokenPriceUSD: tokenPrice,
		BatchEnabled:        true,
		BatchWindow:         5 * time.Second,
		MaxBatchSize:        15,
	}, nil)
}

func fixedHour(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2025, 6, 15, hour, 30, 0, 0, time.UTC)
	}
}
