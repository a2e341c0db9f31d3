package spapi

import (
	"encoding/json"
	"regexp"
	"strings"
)

// catalogItemResponse is the subset of getCatalogItem's response shape
// this client consumes.
type catalogItemResponse struct {
	Summaries []struct {
		ItemName      string `json:"itemName"`
		Brand         string `json:"brand"`
		MarketplaceID string `json:"marketplaceId"`
	} `json:"summaries"`
	Attributes map[string]json.RawMessage `json:"attributes"`
	Images     []struct {
		MarketplaceID string `json:"marketplaceId"`
		Images        []struct {
			Link    string `json:"link"`
			Height  int    `json:"height"`
			Width   int    `json:"width"`
			Variant string `json:"variant"`
		} `json:"images"`
	} `json:"images"`
	SalesRanks []struct {
		MarketplaceID string `json:"marketplaceId"`
		Ranks         []struct {
			Title string `json:"title"`
		} `json:"ranks"`
	} `json:"salesRanks"`
	BrowseNodeInfo struct {
		BrowseNodes []struct {
			Name     string `json:"name"`
			Ancestor *struct {
				Name string `json:"name"`
			} `json:"ancestor"`
		} `json:"browseNodes"`
	} `json:"browseNodeInfo"`
}

// imageIDVariant extracts the {image-id}/{variant} key from an Amazon
// image URL, e.g. https://m.media-amazon.com/images/I/71abc123.MAIN._SX522_.jpg
// -> "71abc123/MAIN".
var imageIDPattern = regexp.MustCompile(`/images/I/([A-Za-z0-9+]+)\.([A-Za-z0-9]+)`)

func imageIDVariant(url string) (id, variant string, ok bool) {
	m := imageIDPattern.FindStringSubmatch(url)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// buildProductInfo assembles a ProductInfo from the raw catalog response:
// title/brand from summaries, category path from the Japanese marketplace
// salesRanks chain (falling back to browseNodeInfo ancestors), and an
// image list deduplicated so only the highest height*width URL survives
// per image-id/variant pair.
func buildProductInfo(asin string, raw catalogItemResponse) *ProductInfo {
	p := &ProductInfo{ASIN: asin}

	if len(raw.Summaries) > 0 {
		p.Title = raw.Summaries[0].ItemName
		p.Brand = raw.Summaries[0].Brand
	}

	p.CategoryPath = categoryPathFromSalesRanks(raw.SalesRanks)
	if p.CategoryPath == "" {
		p.CategoryPath = categoryPathFromBrowseNodes(raw.BrowseNodeInfo.BrowseNodes)
	}

	p.Images = dedupImages(raw.Images)
	return p
}

func categoryPathFromSalesRanks(ranks []struct {
	MarketplaceID string `json:"marketplaceId"`
	Ranks         []struct {
		Title string `json:"title"`
	} `json:"ranks"`
}) string {
	for _, sr := range ranks {
		if sr.MarketplaceID != marketplaceID {
			continue
		}
		titles := make([]string, 0, len(sr.Ranks))
		for _, r := range sr.Ranks {
			if r.Title != "" {
				titles = append(titles, r.Title)
			}
		}
		if len(titles) > 0 {
			return strings.Join(titles, "/")
		}
	}
	return ""
}

func categoryPathFromBrowseNodes(nodes []struct {
	Name     string `json:"name"`
	Ancestor *struct {
		Name string `json:"name"`
	} `json:"ancestor"`
}) string {
	if len(nodes) == 0 {
		return ""
	}
	node := nodes[0]
	var chain []string
	for a := node.Ancestor; a != nil; {
		chain = append([]string{a.Name}, chain...)
		break // browseNodeInfo only carries one ancestor level in this shape
	}
	chain = append(chain, node.Name)
	return strings.Join(chain, "/")
}

func dedupImages(groups []struct {
	MarketplaceID string `json:"marketplaceId"`
	Images        []struct {
		Link    string `json:"link"`
		Height  int    `json:"height"`
		Width   int    `json:"width"`
		Variant string `json:"variant"`
	} `json:"images"`
}) []string {
	type best struct {
		url   string
		area  int
		order int
	}
	byKey := map[string]best{}
	order := 0

	for _, g := range groups {
		if g.MarketplaceID != "" && g.MarketplaceID != marketplaceID {
			continue
		}
		for _, img := range g.Images {
			id, variant, ok := imageIDVariant(img.Link)
			key := img.Variant
			if ok {
				key = id + "/" + variant
			}
			area := img.Height * img.Width
			if cur, exists := byKey[key]; !exists || area > cur.area {
				keyOrder := cur.order
				if !exists {
					order++
					keyOrder = order
				}
				byKey[key] = best{url: img.Link, area: area, order: keyOrder}
			}
		}
	}

	ordered := make([]best, 0, len(byKey))
	for _, b := range byKey {
		ordered = append(ordered, b)
	}
	// stable insertion order by first-seen variant
	for i := 1; i < len(ordered); i++ {
		j := i
		for j > 0 && ordered[j-1].order > ordered[j].order {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
			j--
		}
	}

	out := make([]string, len(ordered))
	for i, b := range ordered {
		out[i] = b.url
	}
	return out
}

// batchOffersResponse is the subset of the pricing batch response this
// client consumes; each entry's body carries the same offer list shape as
// the single-ASIN getItemOffers endpoint.
type batchOffersResponse struct {
	Responses []batchOfferEntry `json:"responses"`
}

type batchOfferEntry struct {
	StatusCode int `json:"status"`
	Body       struct {
		Offers []rawOfferWire `json:"Offers"`
	} `json:"body"`
}

type rawOfferWire struct {
	SubCondition        string `json:"SubCondition"`
	IsFulfilledByAmazon bool   `json:"IsFulfilledByAmazon"`
	PrimeInformation    struct {
		IsOfferPrime bool `json:"IsOfferPrime"`
	} `json:"PrimeInformation"`
	ShippingTime struct {
		MaxHours         int    `json:"maxHours"`
		AvailabilityType string `json:"availabilityType"`
	} `json:"ShippingTime"`
	ListingPrice struct {
		Amount float64 `json:"Amount"`
	} `json:"ListingPrice"`
	Shipping struct {
		Amount float64 `json:"Amount"`
	} `json:"Shipping"`
}

func (e batchOfferEntry) offers() []rawOffer {
	out := make([]rawOffer, len(e.Body.Offers))
	for i, w := range e.Body.Offers {
		condition := "New"
		if w.SubCondition != "" && w.SubCondition != "new" {
			condition = w.SubCondition
		}
		out[i] = rawOffer{
			Condition:        condition,
			ShippingCost:     w.Shipping.Amount,
			MaximumHours:     w.ShippingTime.MaxHours,
			AvailabilityType: w.ShippingTime.AvailabilityType,
			IsPrime:          w.PrimeInformation.IsOfferPrime,
			IsFBA:            w.IsFulfilledByAmazon,
			Price:            w.ListingPrice.Amount + w.Shipping.Amount,
		}
	}
	return out
}
