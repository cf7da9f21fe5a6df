package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"vitacheck/engine/pkg/providers"
)

func strPtr(s string) *string { return &s }

func TestMemoryItemRoundTrip(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	entry, err := cache.GetItem(ctx, "warfarin")
	if err != nil || entry != nil {
		t.Fatalf("expected miss, got %+v, %v", entry, err)
	}

	put := &ItemEntry{
		Normalized: "warfarin",
		RxCUI:      strPtr("11289"),
		Label: &providers.LabelResult{
			ProductName: "COUMADIN",
			Warnings:    []string{"bleeding risk"},
		},
		UpdatedAt: time.Now().UTC(),
	}
	if err := cache.PutItem(ctx, put); err != nil {
		t.Fatalf("PutItem: %v", err)
	}

	got, err := cache.GetItem(ctx, "warfarin")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got == nil || got.RxCUI == nil || *got.RxCUI != "11289" {
		t.Errorf("unexpected entry: %+v", got)
	}
	if !got.HasNegative() {
		t.Error("entry with nil supplement id should report a negative")
	}
}

func TestMemoryPurgeStaleNegatives(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	now := time.Now().UTC()

	// Stale negative, fresh negative, and a stale but fully positive entry.
	cache.PutItem(ctx, &ItemEntry{Normalized: "old-negative", UpdatedAt: now.Add(-48 * time.Hour)})
	cache.PutItem(ctx, &ItemEntry{Normalized: "fresh-negative", UpdatedAt: now})
	cache.PutItem(ctx, &ItemEntry{
		Normalized:   "old-positive",
		RxCUI:        strPtr("1"),
		SupplementID: strPtr("C1"),
		Label:        &providers.LabelResult{ProductName: "X"},
		UpdatedAt:    now.Add(-48 * time.Hour),
	})

	n, err := cache.PurgeStaleNegatives(ctx, now.Add(-NegativeTTL))
	if err != nil {
		t.Fatalf("PurgeStaleNegatives: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d entries, want 1", n)
	}
	if entry, _ := cache.GetItem(ctx, "old-negative"); entry != nil {
		t.Error("stale negative survived the purge")
	}
	if entry, _ := cache.GetItem(ctx, "old-positive"); entry == nil {
		t.Error("positive entry must not expire")
	}
}

func TestMemoryPairVersionScope(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	report := json.RawMessage(`{"severity":"moderate"}`)

	cache.PutPair(ctx, &PairEntry{
		PairKey: "ibuprofen::warfarin", CalcVersion: "v1",
		Report: report, UpdatedAt: time.Now(),
	})

	// A different calculation version never sees the old report.
	if entry, _ := cache.GetPair(ctx, "ibuprofen::warfarin", "v2"); entry != nil {
		t.Fatalf("v2 lookup hit a v1 report: %+v", entry)
	}
	if entry, _ := cache.GetPair(ctx, "ibuprofen::warfarin", "v1"); entry == nil {
		t.Fatal("v1 lookup missed its own report")
	}

	n, err := cache.PurgeVersionsOtherThan(ctx, "v2")
	if err != nil {
		t.Fatalf("PurgeVersionsOtherThan: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d reports, want 1", n)
	}
	if entry, _ := cache.GetPair(ctx, "ibuprofen::warfarin", "v1"); entry != nil {
		t.Error("old version survived the purge")
	}
}

func TestMemoryExposureRoundTrip(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	cache.PutExposure(ctx, &ExposureEntry{
		Normalized: "warfarin", Beneficiaries: 2_500_000, Year: 2023,
		Source: "medicare_part_d", UpdatedAt: time.Now(),
	})

	entry, err := cache.GetExposure(ctx, "warfarin")
	if err != nil || entry == nil {
		t.Fatalf("GetExposure: %+v, %v", entry, err)
	}
	if entry.Beneficiaries != 2_500_000 || entry.Year != 2023 {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestSweeperPurgesOldVersionsAndNegatives(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	now := time.Now().UTC()

	cache.PutPair(ctx, &PairEntry{PairKey: "a::b", CalcVersion: "v1", Report: json.RawMessage(`{}`), UpdatedAt: now})
	cache.PutPair(ctx, &PairEntry{PairKey: "a::b", CalcVersion: "v2", Report: json.RawMessage(`{}`), UpdatedAt: now})
	cache.PutItem(ctx, &ItemEntry{Normalized: "stale", UpdatedAt: now.Add(-48 * time.Hour)})

	sweeper := NewSweeper(cache, SweeperConfig{CalcVersion: "v2"})
	sweeper.Sweep(ctx)

	if entry, _ := cache.GetPair(ctx, "a::b", "v1"); entry != nil {
		t.Error("v1 report survived the sweep")
	}
	if entry, _ := cache.GetPair(ctx, "a::b", "v2"); entry == nil {
		t.Error("live version report was purged")
	}
	if entry, _ := cache.GetItem(ctx, "stale"); entry != nil {
		t.Error("stale negative survived the sweep")
	}
}

func TestItemEntryStaleNegatives(t *testing.T) {
	now := time.Now()
	negative := &ItemEntry{Normalized: "x", UpdatedAt: now.Add(-25 * time.Hour)}
	if !negative.StaleNegatives(now) {
		t.Error("day-old negative should be stale")
	}
	partial := &ItemEntry{Normalized: "x", RxCUI: strPtr("1"), UpdatedAt: now.Add(-25 * time.Hour)}
	if !partial.StaleNegatives(now) {
		t.Error("day-old entry with a nil field should be stale")
	}
	positive := &ItemEntry{
		Normalized: "x", RxCUI: strPtr("1"), SupplementID: strPtr("C1"),
		Label:     &providers.LabelResult{},
		UpdatedAt: now.Add(-25 * time.Hour),
	}
	if positive.StaleNegatives(now) {
		t.Error("positive entries never expire")
	}
}
