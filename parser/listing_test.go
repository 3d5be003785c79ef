package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate_ai/jsonval"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return string(data)
}

func TestParse_FullListing(t *testing.T) {
	p := Parse(loadFixture(t, "listing_full.html"))

	assert.Equal(t, "otodom", p.Source)
	assert.True(t, p.NextDataPresent)
	require.NotNil(t, p.AdID)
	assert.EqualValues(t, 66123456, *p.AdID)
	assert.Equal(t, "OTO-4512", *p.ReferenceID)
	assert.Equal(t, "ACTIVE", *p.Status)
	assert.Equal(t, "2025-01-10T09:15:00Z", *p.CreatedAt)
	assert.Nil(t, p.PushedUpAt)
	assert.Equal(t, "Mieszkanie na sprzedaż Kraków", *p.SeoTitle)
	assert.Equal(t, "Słoneczne mieszkanie z balkonem . Blisko tramwaju.", *p.DescriptionText)
	assert.Equal(t, "SECONDARY", *p.Market)
	require.NotNil(t, p.ExclusiveOffer)
	assert.False(t, *p.ExclusiveOffer)

	assert.InDelta(t, 50.0869, *p.Latitude, 1e-9)
	assert.Equal(t, "ul. Stefana Banacha", *p.Street)
	assert.Equal(t, "12 A", *p.StreetNumber)
	assert.Equal(t, "30-001", *p.PostalCode)
	assert.Equal(t, "ul. Stefana Banacha, Prądnik Biały, Kraków, małopolskie", *p.LocationText)

	assert.Equal(t, []string{"https://img.otodom.pl/1-s.jpg", "https://img.otodom.pl/3-s.jpg"}, p.ImagesSmall)
	assert.Equal(t, 3, p.ImagesCount)
	assert.Equal(t, []string{"balkon", "winda", "internet"}, p.Features)
	assert.Len(t, p.FeaturesByCategory, 2)
	assert.Equal(t, []string{"domofon"}, p.FeaturesByCategory["Zabezpieczenia"])

	require.NotNil(t, p.Owner)
	assert.Equal(t, "agency", *p.Owner.Type)
	assert.Equal(t, []string{"+48 600 100 200"}, p.Owner.Phones)
	assert.Nil(t, p.Owner.ImageURL)
	assert.Equal(t, "Semaco Real Estate", *p.AgencyName)

	assert.Equal(t, "PLN", p.Char["price"].Currency)
	assert.Len(t, p.TopInfo, 2)
	assert.Equal(t, "m²", p.TopInfo["area"].Unit)
	assert.Equal(t, []string{"extras_types::balcony", "extras_types::basement"}, p.AdditionalInfo["extras_types"].Values)

	assert.EqualValues(t, 820000, *p.PricePLN)
	assert.InDelta(t, 68.71, *p.AreaM2, 1e-9)
	assert.EqualValues(t, 11934, *p.PricePerM2PLN)
	assert.EqualValues(t, 4, *p.Rooms, "duplicate characteristic keys keep the last entry")
	assert.EqualValues(t, 3, *p.Floor)
	assert.EqualValues(t, 10, *p.BuildingFloors)
	assert.EqualValues(t, 1978, *p.YearBuilt)
	assert.EqualValues(t, 650, *p.RentPLN)
	require.NotNil(t, p.Lift)
	assert.True(t, *p.Lift)

	require.Equal(t, jsonval.KindMap, p.PropertyRaw.Kind())
	cond, _ := p.PropertyRaw.Get("condition").Str()
	assert.Equal(t, "READY_TO_USE", cond)
}

func TestParse_Degraded(t *testing.T) {
	tests := []struct {
		name        string
		fixture     string
		wantPresent bool
	}{
		{"no script", "listing_no_next_data.html", false},
		{"invalid json", "listing_bad_json.html", false},
		{"no ad object", "listing_no_ad.html", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parse(loadFixture(t, tt.fixture))
			assert.Equal(t, "otodom", p.Source)
			assert.Equal(t, tt.wantPresent, p.NextDataPresent)
			assert.Nil(t, p.AdID)
			assert.Nil(t, p.PricePLN)
			assert.Nil(t, p.AreaM2)
			assert.Nil(t, p.PricePerM2PLN)
			assert.Nil(t, p.Rooms)
			assert.Nil(t, p.Lift)
			assert.True(t, p.PropertyRaw.IsNull())
		})
	}

	p := Parse("")
	assert.False(t, p.NextDataPresent)
}

func TestParse_BackfillsPricePerM2(t *testing.T) {
	html := `<script id="__NEXT_DATA__">{"props":{"pageProps":{"ad":{"id":1,
		"characteristics":[{"key":"price","value":"900000"},{"key":"m","value":"60.0"}],
		"additionalInformation":[{"label":"lift","values":["::n"]}]}}}}</script>`
	p := Parse(html)

	require.NotNil(t, p.PricePLN)
	assert.EqualValues(t, 900000, *p.PricePLN)
	require.NotNil(t, p.AreaM2)
	assert.Equal(t, 60.0, *p.AreaM2)
	require.NotNil(t, p.PricePerM2PLN)
	assert.EqualValues(t, 15000, *p.PricePerM2PLN)
	require.NotNil(t, p.Lift)
	assert.False(t, *p.Lift)
}

func TestParse_MalformedShapes(t *testing.T) {
	html := `<script id="__NEXT_DATA__">{"props":{"pageProps":{"ad":{"id":"77",
		"characteristics":"oops","images":{"small":"x"},"location":"Kraków",
		"topInformation":[{"label":"x","values":"not-a-list"}],
		"characteristics2":[],"property":["not","a","map"]}}}}</script>`
	p := Parse(html)

	require.NotNil(t, p.AdID)
	assert.EqualValues(t, 77, *p.AdID)
	assert.Empty(t, p.Char)
	assert.NotNil(t, p.Char)
	assert.Empty(t, p.ImagesSmall)
	assert.Equal(t, 0, p.ImagesCount)
	assert.Nil(t, p.Latitude)
	assert.Nil(t, p.City)
	assert.Nil(t, p.LocationText)
	assert.Equal(t, []string{}, p.TopInfo["x"].Values)
	assert.True(t, p.PropertyRaw.IsNull())
	assert.Nil(t, p.PricePLN)
}

func TestBackfillPricePerM2(t *testing.T) {
	price := int64(900000)
	area := 60.0
	zero := 0.0
	given := int64(12345)

	got := BackfillPricePerM2(&price, &area, nil)
	require.NotNil(t, got)
	assert.EqualValues(t, 15000, *got)

	assert.Equal(t, &given, BackfillPricePerM2(&price, &area, &given))
	assert.Nil(t, BackfillPricePerM2(&price, &zero, nil))
	assert.Nil(t, BackfillPricePerM2(nil, &area, nil))
	assert.Nil(t, BackfillPricePerM2(&price, nil, nil))
}

func TestLiftFromValues(t *testing.T) {
	tests := []struct {
		values []string
		want   *bool
	}{
		{[]string{"::n"}, boolPtr(false)},
		{[]string{"::y"}, boolPtr(true)},
		{[]string{"lift::yes"}, boolPtr(true)},
		{[]string{"::0"}, boolPtr(false)},
		{[]string{"::1"}, boolPtr(true)},
		{[]string{"NO"}, boolPtr(false)},
		{[]string{"maybe"}, nil},
		{nil, nil},
	}
	for _, tt := range tests {
		got := LiftFromValues(tt.values)
		if tt.want == nil {
			assert.Nil(t, got, "values %v", tt.values)
			continue
		}
		require.NotNil(t, got, "values %v", tt.values)
		assert.Equal(t, *tt.want, *got, "values %v", tt.values)
	}
}

func TestHTMLToText(t *testing.T) {
	assert.Nil(t, HTMLToText(""))
	assert.Nil(t, HTMLToText("<br/>"))
	assert.Equal(t, "a & b", *HTMLToText("<div>a &amp; b</div>"))
	assert.Equal(t, "one two", *HTMLToText("<ul><li>one</li><li>two</li></ul>"))
	assert.Equal(t, "1 < 2", *HTMLToText("<p>1 &lt; 2</p>"))
}

func boolPtr(b bool) *bool { return &b }
