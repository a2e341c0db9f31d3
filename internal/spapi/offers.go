package spapi

// invitationOnlySentinel is the SP-API sentinel maximumHours value marking
// an invitation-only offer; it must never be selected.
const invitationOnlySentinel = 999

const maxDeliveryHours = 72

// scoreOffer returns the offer's score, and whether it
// survives the hard filters at all.
func scoreOffer(o rawOffer) (score float64, ok bool) {
	if o.Condition != "New" {
		return 0, false
	}
	if o.MaximumHours > maxDeliveryHours {
		return 0, false
	}
	if o.MaximumHours == invitationOnlySentinel {
		return 0, false
	}
	if o.ShippingCost != 0 {
		return 0, false
	}

	if o.AvailabilityType == "NOW" {
		score += 1000
	}
	score += float64(maxDeliveryHours - o.MaximumHours)
	if o.IsPrime {
		score += 100
	}
	if o.IsFBA {
		score += 50
	}
	return score, true
}

// chooseBestOffer selects the highest-scoring offer, breaking ties by
// lowest price.
func chooseBestOffer(offers []rawOffer) (rawOffer, bool) {
	var best rawOffer
	var bestScore float64
	found := false

	for _, o := range offers {
		score, ok := scoreOffer(o)
		if !ok {
			continue
		}
		if !found {
			best, bestScore, found = o, score, true
			continue
		}
		if score > bestScore || (score == bestScore && o.Price < best.Price) {
			best, bestScore = o, score
		}
	}
	return best, found
}

// resultFromOffers turns a raw offer list for one ASIN into a tagged
// OfferResult. An empty offers slice is out_of_stock; offers present but
// none surviving the hard filters is filtered_out.
func resultFromOffers(asin string, offers []rawOffer) OfferResult {
	if len(offers) == 0 {
		return OfferResult{ASIN: asin, Status: OfferOutOfStock}
	}

	best, ok := chooseBestOffer(offers)
	if !ok {
		return OfferResult{ASIN: asin, Status: OfferFilteredOut}
	}

	return OfferResult{
		ASIN:     asin,
		Status:   OfferSuccess,
		Price:    int64(best.Price + 0.5),
		InStock:  true,
		IsPrime:  best.IsPrime,
		IsFBA:    best.IsFBA,
		Currency: "JPY",
	}
}
