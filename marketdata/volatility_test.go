package marketdata

import (
	"math"
	"testing"
	"time"
)

func TestVolEstimatorWindowEviction(t *testing.T) {
	est := NewVolEstimator(3)
	now := time.Now()
	for i := 0; i < 5; i++ {
		est.AddPrice(100+float64(i), now.Add(time.Duration(i)*time.Minute))
	}
	if est.Len() != 3 {
		t.Fatalf("window holds %d prices, want 3", est.Len())
	}
}

func TestVolEstimatorConstantPrices(t *testing.T) {
	est := NewVolEstimator(10)
	now := time.Now()
	for i := 0; i < 5; i++ {
		est.AddPrice(100, now.Add(time.Duration(i)*time.Minute))
	}
	if vol := est.RealizedVol(); vol != 0 {
		t.Fatalf("vol = %f for constant prices, want 0", vol)
	}
}

func TestVolEstimatorReadiness(t *testing.T) {
	est := NewVolEstimator(5)
	if est.IsReady() {
		t.Fatalf("ready with no prices")
	}
	now := time.Now()
	est.AddPrice(100, now)
	if est.IsReady() {
		t.Fatalf("ready with one price")
	}
	est.AddPrice(101, now.Add(time.Minute))
	if !est.IsReady() {
		t.Fatalf("not ready with two prices")
	}
}

func TestVolEstimatorIgnoresBadPrices(t *testing.T) {
	est := NewVolEstimator(5)
	est.AddPrice(0, time.Now())
	est.AddPrice(-5, time.Now())
	if est.Len() != 0 {
		t.Fatalf("bad prices entered the window")
	}
}

func TestVolEstimatorAnnualizationScalesWithInterval(t *testing.T) {
	prices := []float64{100, 101, 99.5, 100.8, 99.9, 101.2, 100.1, 100.9}
	now := time.Now()

	fast := NewVolEstimator(len(prices))
	slow := NewVolEstimator(len(prices))
	for i, p := range prices {
		fast.AddPrice(p, now.Add(time.Duration(i)*time.Minute))
		slow.AddPrice(p, now.Add(time.Duration(i)*time.Hour))
	}

	vf, vs := fast.RealizedVol(), slow.RealizedVol()
	if vf <= 0 || vs <= 0 {
		t.Fatalf("vols = %f / %f, want positive", vf, vs)
	}
	// Same returns sampled 60x faster annualize sqrt(60) higher.
	if ratio := vf / vs; math.Abs(ratio-math.Sqrt(60)) > 1e-6 {
		t.Fatalf("annualization ratio = %f, want sqrt(60) = %f", ratio, math.Sqrt(60))
	}
}
