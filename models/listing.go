package models

import "realestate_ai/jsonval"

// SourceOtodom is the source tag written on every parsed otodom listing.
const SourceOtodom = "otodom"

// ParsedListing is the bronze payload produced from one listing page.
// Absent fields stay nil and encode as JSON null so every payload carries
// the same key set.
type ParsedListing struct {
	Source          string `json:"source"`
	NextDataPresent bool   `json:"next_data_present"`

	AdID        *int64  `json:"ad_id"`
	ReferenceID *string `json:"reference_id"`
	Slug        *string `json:"slug"`
	URL         *string `json:"url"`
	Status      *string `json:"status"`
	CreatedAt   *string `json:"created_at"`
	ModifiedAt  *string `json:"modified_at"`
	PushedUpAt  *string `json:"pushed_up_at"`

	Title           *string `json:"title"`
	SeoTitle        *string `json:"seo_title"`
	SeoDescription  *string `json:"seo_description"`
	DescriptionHTML *string `json:"description_html"`
	DescriptionText *string `json:"description_text"`

	Market         *string `json:"market"`
	AdvertiserType *string `json:"advertiser_type"`
	AdvertType     *string `json:"advert_type"`
	ExclusiveOffer *bool   `json:"exclusive_offer"`
	CreationSource *string `json:"creation_source"`

	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Street       *string  `json:"street"`
	StreetNumber *string  `json:"street_number"`
	District     *string  `json:"district"`
	City         *string  `json:"city"`
	County       *string  `json:"county"`
	Province     *string  `json:"province"`
	PostalCode   *string  `json:"postal_code"`
	LocationText *string  `json:"location_text"`

	ImagesSmall []string `json:"images_small"`
	ImagesCount int      `json:"images_count"`

	Features                []string            `json:"features"`
	FeaturesByCategory      map[string][]string `json:"features_by_category"`
	FeaturesWithoutCategory []string            `json:"features_without_category"`

	Owner      *Owner  `json:"owner"`
	AgencyName *string `json:"agency_name"`

	Char           map[string]Characteristic `json:"char"`
	TopInfo        map[string]InfoBlock      `json:"top_info"`
	AdditionalInfo map[string]InfoBlock      `json:"additional_info"`

	PricePLN       *int64   `json:"price_pln"`
	AreaM2         *float64 `json:"area_m2"`
	PricePerM2PLN  *int64   `json:"price_per_m2_pln"`
	Rooms          *int64   `json:"rooms"`
	BuildingFloors *int64   `json:"building_floors"`
	YearBuilt      *int64   `json:"year_built"`
	RentPLN        *int64   `json:"rent_pln"`
	Floor          *int64   `json:"floor"`
	Lift           *bool    `json:"lift"`

	PropertyRaw jsonval.Value `json:"property_raw"`
}

// Characteristic is one entry of the listing's characteristics list.
// Value and Localized are kept exactly as the page sent them.
type Characteristic struct {
	Value     jsonval.Value `json:"value"`
	Localized jsonval.Value `json:"localized"`
	Currency  string        `json:"currency,omitempty"`
}

// InfoBlock holds the raw values of a top/additional information entry.
type InfoBlock struct {
	Values []string `json:"values"`
	Unit   string   `json:"unit,omitempty"`
}

type Owner struct {
	ID       jsonval.Value `json:"id"`
	Name     *string       `json:"name"`
	Type     *string       `json:"type"`
	Phones   []string      `json:"phones"`
	ImageURL *string       `json:"imageUrl"`
}

// NewParsedListing returns the degraded payload used when a page carries no
// usable structured data.
func NewParsedListing(nextDataPresent bool) *ParsedListing {
	return &ParsedListing{
		Source:          SourceOtodom,
		NextDataPresent: nextDataPresent,
	}
}

// Value builds the payload's JSON tree directly, without an encode/decode pass.
func (p *ParsedListing) Value() jsonval.Value {
	m := map[string]jsonval.Value{
		"source":            jsonval.String(p.Source),
		"next_data_present": jsonval.Bool(p.NextDataPresent),

		"ad_id":        jsonval.FromAny(p.AdID),
		"reference_id": jsonval.FromAny(p.ReferenceID),
		"slug":         jsonval.FromAny(p.Slug),
		"url":          jsonval.FromAny(p.URL),
		"status":       jsonval.FromAny(p.Status),
		"created_at":   jsonval.FromAny(p.CreatedAt),
		"modified_at":  jsonval.FromAny(p.ModifiedAt),
		"pushed_up_at": jsonval.FromAny(p.PushedUpAt),

		"title":            jsonval.FromAny(p.Title),
		"seo_title":        jsonval.FromAny(p.SeoTitle),
		"seo_description":  jsonval.FromAny(p.SeoDescription),
		"description_html": jsonval.FromAny(p.DescriptionHTML),
		"description_text": jsonval.FromAny(p.DescriptionText),

		"market":          jsonval.FromAny(p.Market),
		"advertiser_type": jsonval.FromAny(p.AdvertiserType),
		"advert_type":     jsonval.FromAny(p.AdvertType),
		"exclusive_offer": jsonval.FromAny(p.ExclusiveOffer),
		"creation_source": jsonval.FromAny(p.CreationSource),

		"latitude":      jsonval.FromAny(p.Latitude),
		"longitude":     jsonval.FromAny(p.Longitude),
		"street":        jsonval.FromAny(p.Street),
		"street_number": jsonval.FromAny(p.StreetNumber),
		"district":      jsonval.FromAny(p.District),
		"city":          jsonval.FromAny(p.City),
		"county":        jsonval.FromAny(p.County),
		"province":      jsonval.FromAny(p.Province),
		"postal_code":   jsonval.FromAny(p.PostalCode),
		"location_text": jsonval.FromAny(p.LocationText),

		"images_small": stringList(p.ImagesSmall),
		"images_count": jsonval.Int(int64(p.ImagesCount)),

		"features":                  stringList(p.Features),
		"features_by_category":      stringListMap(p.FeaturesByCategory),
		"features_without_category": stringList(p.FeaturesWithoutCategory),

		"owner":       p.Owner.value(),
		"agency_name": jsonval.FromAny(p.AgencyName),

		"char":            charValue(p.Char),
		"top_info":        infoValue(p.TopInfo),
		"additional_info": infoValue(p.AdditionalInfo),

		"price_pln":        jsonval.FromAny(p.PricePLN),
		"area_m2":          jsonval.FromAny(p.AreaM2),
		"price_per_m2_pln": jsonval.FromAny(p.PricePerM2PLN),
		"rooms":            jsonval.FromAny(p.Rooms),
		"building_floors":  jsonval.FromAny(p.BuildingFloors),
		"year_built":       jsonval.FromAny(p.YearBuilt),
		"rent_pln":         jsonval.FromAny(p.RentPLN),
		"floor":            jsonval.FromAny(p.Floor),
		"lift":             jsonval.FromAny(p.Lift),

		"property_raw": p.PropertyRaw,
	}
	return jsonval.Map(m)
}

func (o *Owner) value() jsonval.Value {
	if o == nil {
		return jsonval.Null
	}
	return jsonval.Map(map[string]jsonval.Value{
		"id":       o.ID,
		"name":     jsonval.FromAny(o.Name),
		"type":     jsonval.FromAny(o.Type),
		"phones":   stringList(o.Phones),
		"imageUrl": jsonval.FromAny(o.ImageURL),
	})
}

// stringList mirrors encoding/json: a nil slice encodes as null.
func stringList(s []string) jsonval.Value {
	if s == nil {
		return jsonval.Null
	}
	return jsonval.FromAny(s)
}

func stringListMap(m map[string][]string) jsonval.Value {
	if m == nil {
		return jsonval.Null
	}
	out := make(map[string]jsonval.Value, len(m))
	for k, v := range m {
		out[k] = stringList(v)
	}
	return jsonval.Map(out)
}

func charValue(m map[string]Characteristic) jsonval.Value {
	if m == nil {
		return jsonval.Null
	}
	out := make(map[string]jsonval.Value, len(m))
	for k, c := range m {
		entry := map[string]jsonval.Value{
			"value":     c.Value,
			"localized": c.Localized,
		}
		if c.Currency != "" {
			entry["currency"] = jsonval.String(c.Currency)
		}
		out[k] = jsonval.Map(entry)
	}
	return jsonval.Map(out)
}

func infoValue(m map[string]InfoBlock) jsonval.Value {
	if m == nil {
		return jsonval.Null
	}
	out := make(map[string]jsonval.Value, len(m))
	for k, b := range m {
		entry := map[string]jsonval.Value{"values": stringList(b.Values)}
		if b.Unit != "" {
			entry["unit"] = jsonval.String(b.Unit)
		}
		out[k] = jsonval.Map(entry)
	}
	return jsonval.Map(out)
}
