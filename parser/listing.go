package parser

import (
	"io"
	"math"
	"strconv"
	"strings"

	"realestate_ai/jsonval"
	"realestate_ai/models"
)

// Parse extracts the bronze payload from a listing page. It never fails:
// pages without usable structured data yield a payload that only reports
// whether __NEXT_DATA__ was present.
func Parse(html string) *models.ParsedListing {
	return ParseReader(strings.NewReader(html))
}

func ParseReader(r io.Reader) *models.ParsedListing {
	doc, err := loadDocument(r)
	if err != nil {
		return models.NewParsedListing(false)
	}
	next, ok := ReadNextData(doc)
	if !ok {
		return models.NewParsedListing(false)
	}

	out := models.NewParsedListing(true)
	ad := next.Search(adPath)
	if ad.Kind() != jsonval.KindMap {
		return out
	}
	fillListing(out, ad)
	return out
}

func fillListing(out *models.ParsedListing, ad jsonval.Value) {
	out.AdID = intValue(ad.Get("id"))
	out.ReferenceID = strValue(ad.Get("referenceId"))
	out.Slug = strValue(ad.Get("slug"))
	out.URL = strValue(ad.Get("url"))
	out.Status = strValue(ad.Get("status"))
	out.CreatedAt = strValue(ad.Get("createdAt"))
	out.ModifiedAt = strValue(ad.Get("modifiedAt"))
	out.PushedUpAt = strValue(ad.Get("pushedUpAt"))

	out.Title = strValue(ad.Get("title"))
	out.SeoTitle = strValue(ad.Path("seo", "title"))
	out.SeoDescription = strValue(ad.Path("seo", "description"))

	out.DescriptionHTML = strValue(ad.Get("description"))
	if out.DescriptionHTML != nil {
		out.DescriptionText = HTMLToText(*out.DescriptionHTML)
	}

	out.Market = strValue(ad.Get("market"))
	out.AdvertiserType = strValue(ad.Get("advertiserType"))
	out.AdvertType = strValue(ad.Get("advertType"))
	out.ExclusiveOffer = boolValue(ad.Get("exclusiveOffer"))
	out.CreationSource = strValue(ad.Get("creationSource"))

	fillLocation(out, ad.Get("location"))
	fillMedia(out, ad)
	fillOwner(out, ad)

	out.Char = characteristics(ad.Get("characteristics"))
	out.TopInfo = infoBlocks(ad.Get("topInformation"))
	out.AdditionalInfo = infoBlocks(ad.Get("additionalInformation"))

	fillDerived(out)

	if prop := ad.Get("property"); prop.Kind() == jsonval.KindMap {
		out.PropertyRaw = prop
	}
}

func fillLocation(out *models.ParsedListing, loc jsonval.Value) {
	out.Latitude = floatValue(loc.Path("coordinates", "latitude"))
	out.Longitude = floatValue(loc.Path("coordinates", "longitude"))

	addr := loc.Get("address")
	out.Street = strValue(addr.Path("street", "name"))
	if num := strValue(addr.Path("street", "number")); num != nil {
		out.StreetNumber = CleanText(*num)
	}
	out.District = strValue(addr.Path("district", "name"))
	out.City = strValue(addr.Path("city", "name"))
	out.County = strValue(addr.Path("county", "name"))
	out.Province = strValue(addr.Path("province", "name"))
	out.PostalCode = strValue(addr.Get("postalCode"))

	var parts []string
	for _, p := range []*string{out.Street, out.District, out.City, out.Province} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	if len(parts) > 0 {
		text := strings.Join(parts, ", ")
		out.LocationText = &text
	}
}

func fillMedia(out *models.ParsedListing, ad jsonval.Value) {
	images, _ := ad.Get("images").List()
	out.ImagesSmall = []string{}
	for _, img := range images {
		if small, ok := img.Get("small").Str(); ok && small != "" {
			out.ImagesSmall = append(out.ImagesSmall, small)
		}
	}
	out.ImagesCount = len(images)

	out.Features = stringsOf(ad.Get("features"))
	out.FeaturesWithoutCategory = stringsOf(ad.Get("featuresWithoutCategory"))

	out.FeaturesByCategory = map[string][]string{}
	groups, _ := ad.Get("featuresByCategory").List()
	for _, g := range groups {
		label, _ := g.Get("label").Str()
		if label == "" || g.Get("values").Kind() != jsonval.KindList {
			continue
		}
		out.FeaturesByCategory[label] = stringsOf(g.Get("values"))
	}
}

func fillOwner(out *models.ParsedListing, ad jsonval.Value) {
	owner := ad.Get("owner")
	out.Owner = &models.Owner{
		ID:       owner.Get("id"),
		Name:     strValue(owner.Get("name")),
		Type:     strValue(owner.Get("type")),
		Phones:   stringsOf(owner.Get("phones")),
		ImageURL: strValue(owner.Get("imageUrl")),
	}
	out.AgencyName = strValue(ad.Path("agency", "name"))
}

// characteristics turns the characteristics list into a key-indexed map.
// Later duplicates overwrite earlier ones.
func characteristics(v jsonval.Value) map[string]models.Characteristic {
	out := map[string]models.Characteristic{}
	items, _ := v.List()
	for _, it := range items {
		if it.Kind() != jsonval.KindMap {
			continue
		}
		key, _ := it.Get("key").Text()
		if key == "" {
			continue
		}
		ch := models.Characteristic{
			Value:     it.Get("value"),
			Localized: it.Get("localizedValue"),
		}
		if cur, ok := it.Get("currency").Str(); ok {
			ch.Currency = cur
		}
		out[key] = ch
	}
	return out
}

func infoBlocks(v jsonval.Value) map[string]models.InfoBlock {
	out := map[string]models.InfoBlock{}
	items, _ := v.List()
	for _, it := range items {
		label, _ := it.Get("label").Text()
		if label == "" {
			continue
		}
		block := models.InfoBlock{Values: stringsOf(it.Get("values"))}
		if unit, ok := it.Get("unit").Str(); ok {
			block.Unit = unit
		}
		out[label] = block
	}
	return out
}

func fillDerived(out *models.ParsedListing) {
	text := func(key string) string {
		ch, ok := out.Char[key]
		if !ok {
			return ""
		}
		if s, ok := ch.Value.Text(); ok && s != "" {
			return s
		}
		s, _ := ch.Localized.Text()
		return s
	}

	out.PricePLN = ParseInt(text("price"))
	out.AreaM2 = ParseFloat(text("m"))
	out.PricePerM2PLN = ParseInt(text("price_per_m"))
	out.Rooms = ParseInt(text("rooms_num"))
	out.BuildingFloors = ParseInt(text("building_floors_num"))
	out.YearBuilt = ParseInt(text("build_year"))
	out.RentPLN = ParseInt(text("rent"))
	out.Floor = ParseInt(text("floor_no"))

	if lift, ok := out.AdditionalInfo["lift"]; ok {
		out.Lift = LiftFromValues(lift.Values)
	}

	out.PricePerM2PLN = BackfillPricePerM2(out.PricePLN, out.AreaM2, out.PricePerM2PLN)
}

// BackfillPricePerM2 returns perM2 unchanged when set, otherwise
// round(price/area) when both are present and area is non-zero.
func BackfillPricePerM2(price *int64, area *float64, perM2 *int64) *int64 {
	if perM2 != nil || price == nil || area == nil || *area == 0 {
		return perM2
	}
	v := int64(math.Round(float64(*price) / *area))
	return &v
}

// LiftFromValues reads the tri-state flag otodom encodes as "::n" / "::y"
// style info values. Unrecognized input gives nil.
func LiftFromValues(values []string) *bool {
	joined := strings.ToLower(strings.Join(values, " "))
	var v bool
	switch {
	case strings.Contains(joined, "::n"), strings.Contains(joined, "no"), strings.Contains(joined, "::0"):
		v = false
	case strings.Contains(joined, "::y"), strings.Contains(joined, "yes"), strings.Contains(joined, "::1"):
		v = true
	default:
		return nil
	}
	return &v
}

func strValue(v jsonval.Value) *string {
	s, ok := v.Text()
	if !ok {
		return nil
	}
	return &s
}

func intValue(v jsonval.Value) *int64 {
	if n, ok := v.Int(); ok {
		return &n
	}
	if s, ok := v.Str(); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return &n
		}
	}
	return nil
}

func floatValue(v jsonval.Value) *float64 {
	if f, ok := v.Float(); ok {
		return &f
	}
	if s, ok := v.Str(); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return &f
		}
	}
	return nil
}

func boolValue(v jsonval.Value) *bool {
	if b, ok := v.Bool(); ok {
		return &b
	}
	return nil
}

// stringsOf renders the scalar members of a list. Anything that is not a
// list gives an empty, non-nil slice.
func stringsOf(v jsonval.Value) []string {
	out := []string{}
	items, _ := v.List()
	for _, it := range items {
		if s, ok := it.Text(); ok {
			out = append(out, s)
		}
	}
	return out
}
