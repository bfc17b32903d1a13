package limits

import (
	"math"
	"testing"
	"time"
)

func TestAverage(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{42}, 42},
		{"grid readings", []float64{90, 95, 100, 105, 110}, 100},
		{"skips NaN", []float64{10, math.NaN(), 20}, 15},
		{"skips Inf", []float64{10, math.Inf(1), 20}, 15},
		{"all invalid", []float64{math.NaN(), math.Inf(-1)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Average(tt.values)
			if got != tt.want {
				t.Errorf("Average(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		limit float64
		bound Bound
		want  Verdict
	}{
		{"NMT under", 10, 20, NMT, Pass},
		{"NMT equal", 20, 20, NMT, Pass},
		{"NMT over", 21, 20, NMT, Fail},
		{"NLT over", 20, 10, NLT, Pass},
		{"NLT equal", 10, 10, NLT, Pass},
		{"NLT under", 9, 10, NLT, Fail},
		{"NaN value", math.NaN(), 10, NMT, Fail},
		{"NaN limit", 10, math.NaN(), NLT, Fail},
		{"unknown bound", 10, 20, Bound("between"), Fail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.value, tt.limit, tt.bound); got != tt.want {
				t.Errorf("Classify(%v, %v, %s) = %s, want %s", tt.value, tt.limit, tt.bound, got, tt.want)
			}
		})
	}
}

func TestParticleLimits(t *testing.T) {
	tests := []struct {
		class  int
		want05 float64
		want5  float64
		ok     bool
	}{
		{5, 3_520, 29, true},
		{6, 35_200, 293, true},
		{7, 352_000, 2_930, true},
		{8, 3_520_000, 29_300, true},
		{4, 0, 0, false},
		{9, 0, 0, false},
	}
	for _, tt := range tests {
		l, ok := ParticleLimits(tt.class)
		if ok != tt.ok {
			t.Errorf("ParticleLimits(%d) ok = %v, want %v", tt.class, ok, tt.ok)
			continue
		}
		if ok && (l.At05 != tt.want05 || l.At5 != tt.want5) {
			t.Errorf("ParticleLimits(%d) = %+v, want {%v %v}", tt.class, l, tt.want05, tt.want5)
		}
	}
}

func TestEvaluateRoomMeans(t *testing.T) {
	tests := []struct {
		name   string
		class  int
		mean05 float64
		mean5  float64
		want   Verdict
	}{
		{"ISO8 clean room", 8, 1_200_000, 10_000, Pass},
		{"ISO8 at limit", 8, 3_520_000, 29_300, Pass},
		{"ISO8 05 channel over", 8, 3_520_001, 100, Fail},
		{"ISO8 5 channel over", 8, 100, 29_301, Fail},
		{"ISO5 strict", 5, 3_000, 29, Pass},
		{"ISO5 over", 5, 3_521, 10, Fail},
		{"unknown class", 3, 0, 0, Fail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateRoomMeans(tt.class, tt.mean05, tt.mean5); got != tt.want {
				t.Errorf("EvaluateRoomMeans(%d, %v, %v) = %s, want %s", tt.class, tt.mean05, tt.mean5, got, tt.want)
			}
		})
	}
}

func TestCheckDifferentialPressure(t *testing.T) {
	if got := CheckDifferentialPressure(15, 10); got != Pass {
		t.Errorf("dP 15 against limit 10 = %s, want PASS", got)
	}
	if got := CheckDifferentialPressure(10, 10); got != Pass {
		t.Errorf("dP at limit = %s, want PASS", got)
	}
	if got := CheckDifferentialPressure(8, 10); got != Fail {
		t.Errorf("dP 8 against limit 10 = %s, want FAIL", got)
	}
	if got := CheckDifferentialPressure(math.NaN(), 10); got != Fail {
		t.Errorf("NaN dP = %s, want FAIL", got)
	}
}

func TestAirflowDerivations(t *testing.T) {
	avg := AverageVelocity([]float64{90, 95, 100, 105, 110})
	if avg != 100 {
		t.Fatalf("AverageVelocity = %v, want 100", avg)
	}
	cfm := AirflowCFM(avg, 4)
	if cfm != 400 {
		t.Errorf("AirflowCFM(100, 4) = %v, want 400", cfm)
	}
	if got := AirflowCFM(math.NaN(), 4); got != 0 {
		t.Errorf("AirflowCFM with NaN velocity = %v, want 0", got)
	}
}

func TestACH(t *testing.T) {
	tests := []struct {
		name   string
		cfm    float64
		volume float64
		want   float64
	}{
		{"typical room", 1200, 3600, 20},
		{"zero volume", 1200, 0, 0},
		{"negative volume", 1200, -5, 0},
		{"NaN flow", math.NaN(), 3600, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ACH(tt.cfm, tt.volume); got != tt.want {
				t.Errorf("ACH(%v, %v) = %v, want %v", tt.cfm, tt.volume, got, tt.want)
			}
		})
	}
}

func TestEvaluateRecovery(t *testing.T) {
	if got := EvaluateRecovery(12, 15); got != Pass {
		t.Errorf("recovery 12 min within 15 = %s, want PASS", got)
	}
	if got := EvaluateRecovery(16, 15); got != Fail {
		t.Errorf("recovery 16 min within 15 = %s, want FAIL", got)
	}
}

func TestDownstreamLeakagePercent(t *testing.T) {
	tests := []struct {
		name       string
		downstream float64
		upstream   float64
		want       float64
	}{
		{"one in ten thousand", 1, 10_000, 0.01},
		{"zero upstream", 5, 0, 0},
		{"zero downstream", 0, 100, 0},
		{"NaN upstream", 1, math.NaN(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DownstreamLeakagePercent(tt.downstream, tt.upstream); got != tt.want {
				t.Errorf("DownstreamLeakagePercent(%v, %v) = %v, want %v", tt.downstream, tt.upstream, got, tt.want)
			}
		})
	}
}

func TestCheckFilterLeakage(t *testing.T) {
	if got := CheckFilterLeakage(0.005, 0.01); got != Pass {
		t.Errorf("leakage 0.005%% against 0.01%% = %s, want PASS", got)
	}
	if got := CheckFilterLeakage(0.02, 0.01); got != Fail {
		t.Errorf("leakage 0.02%% against 0.01%% = %s, want FAIL", got)
	}
}

func TestCalibrationStatus(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		due  time.Time
		want CalStatus
	}{
		{"past due", now.Add(-24 * time.Hour), CalExpired},
		{"due tomorrow", now.Add(24 * time.Hour), CalExpiring},
		{"due in 30 days", now.Add(30 * 24 * time.Hour), CalExpiring},
		{"due in 31 days", now.Add(31 * 24 * time.Hour), CalValid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalibrationStatus(tt.due, now); got != tt.want {
				t.Errorf("CalibrationStatus(%v) = %s, want %s", tt.due, got, tt.want)
			}
		})
	}
}
