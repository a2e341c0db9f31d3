package spapi

import "testing"

func TestOfferScoringPicksBestOffer(t *testing.T) {
	offers := []rawOffer{
		{Condition: "New", ShippingCost: 0, MaximumHours: 24, AvailabilityType: "NOW", IsPrime: true, IsFBA: true, Price: 1200},
		{Condition: "New", ShippingCost: 0, MaximumHours: 48, AvailabilityType: "", IsPrime: true, IsFBA: true, Price: 1100},
		{Condition: "New", ShippingCost: 500, MaximumHours: 24, AvailabilityType: "", IsPrime: false, IsFBA: false, Price: 1000},
	}

	result := resultFromOffers("B01TEST001", offers)
	if result.Status != OfferSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if result.Price != 1200 {
		t.Fatalf("expected price 1200, got %d", result.Price)
	}
	if !result.IsPrime || !result.IsFBA {
		t.Fatal("expected winning offer to be prime+fba")
	}
}

func TestInvitationOnlyOfferIsNeverSelected(t *testing.T) {
	offers := []rawOffer{
		{Condition: "New", ShippingCost: 0, MaximumHours: 999, AvailabilityType: "NOW"},
	}
	result := resultFromOffers("B01TEST002", offers)
	if result.Status != OfferFilteredOut {
		t.Fatalf("expected filtered_out, got %s", result.Status)
	}
	if result.InStock {
		t.Fatal("filtered_out result must not report in stock")
	}
}

func TestNoOffersIsOutOfStock(t *testing.T) {
	result := resultFromOffers("B01TEST003", nil)
	if result.Status != OfferOutOfStock {
		t.Fatalf("expected out_of_stock, got %s", result.Status)
	}
}

func TestShippingCostFiltersOffer(t *testing.T) {
	offers := []rawOffer{
		{Condition: "New", ShippingCost: 300, MaximumHours: 24, AvailabilityType: "NOW"},
	}
	result := resultFromOffers("B01TEST004", offers)
	if result.Status != OfferFilteredOut {
		t.Fatalf("expected filtered_out for nonzero shipping, got %s", result.Status)
	}
}

func TestTieBreaksOnLowestPrice(t *testing.T) {
	offers := []rawOffer{
		{Condition: "New", ShippingCost: 0, MaximumHours: 24, Price: 1500},
		{Condition: "New", ShippingCost: 0, MaximumHours: 24, Price: 1400},
	}
	result := resultFromOffers("B01TEST005", offers)
	if result.Price != 1400 {
		t.Fatalf("expected lowest-price tie-break to pick 1400, got %d", result.Price)
	}
}
