package silver

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"realestate_ai/jsonval"
	"realestate_ai/models"
)

const (
	PropertyRawKey        = "property_raw"
	BuildingPropertiesKey = "buildingProperties"
)

// envelopeFields are taken from the bronze row's own columns.
var envelopeFields = []string{
	"source", "ad_id", "url", "status", "created_at", "modified_at", "pushed_up_at",
}

// payloadFields are copied verbatim from the stored payload.
var payloadFields = []string{
	"reference_id",
	"title", "seo_title", "seo_description", "description_text",
	"market", "advertiser_type", "advert_type", "exclusive_offer", "creation_source",
	"latitude", "longitude",
	"street", "street_number", "district", "city", "county", "province", "postal_code", "location_text",
	"images_count", "features", "agency_name",
	"price_pln", "area_m2", "price_per_m2_pln",
	"rooms", "building_floors", "year_built", "rent_pln", "floor", "lift",
}

// Collision records a key written by one extraction stage and then
// overwritten by a later one.
type Collision struct {
	Key    string
	First  string
	Second string
}

func (c Collision) String() string {
	return fmt.Sprintf("%s (%s -> %s)", c.Key, c.First, c.Second)
}

type Result struct {
	Record     Record
	Collisions []Collision
}

var ErrNilListing = errors.New("nil listing")

// Extract flattens a stored bronze row. It fails only when the row is nil or
// the payload is not valid JSON.
func Extract(b *models.BronzeListing) (*Result, error) {
	if b == nil {
		return nil, ErrNilListing
	}
	payload, err := jsonval.Decode(b.Payload)
	if err != nil {
		return nil, fmt.Errorf("listing %s/%d: %w", b.Source, b.AdID, err)
	}
	return ExtractValue(b, payload), nil
}

// ExtractValue flattens an already decoded payload. Stages run in a fixed
// order: characteristics, information blocks, envelope fields, payload
// fields, property_raw, buildingProperties. A later stage overwrites keys of
// an earlier one and the overwrite is reported in Result.Collisions.
// The key set depends on which sub-objects are present; Transform gives
// every row the same columns.
func ExtractValue(b *models.BronzeListing, payload jsonval.Value) *Result {
	w := &recordWriter{rec: Record{}, owner: map[string]string{}}

	w.stage = "char"
	char := payload.Get("char")
	for _, k := range char.Keys() {
		w.set(k, char.Get(k).Get("value"))
	}

	for _, field := range []string{"top_info", "additional_info"} {
		w.stage = field
		extractInfoValues(w, payload.Get(field))
	}

	w.stage = "envelope"
	for k, v := range envelopeValues(b, payload) {
		w.set(k, v)
	}

	w.stage = "payload"
	for _, k := range payloadFields {
		w.set(k, payload.Get(k))
	}

	propertyRaw := payload.Get(PropertyRawKey)
	w.stage = PropertyRawKey
	w.flatten(propertyRaw, PropertyRawKey+Separator)

	building := payload.Get(BuildingPropertiesKey)
	if building.IsNull() {
		building = propertyRaw.Get(BuildingPropertiesKey)
	}
	w.stage = BuildingPropertiesKey
	w.flatten(building, BuildingPropertiesKey+Separator)

	sort.Slice(w.collisions, func(i, j int) bool { return w.collisions[i].Key < w.collisions[j].Key })
	return &Result{Record: w.rec, Collisions: w.collisions}
}

// extractInfoValues splits "key::value" entries into key -> value. Entries
// without the marker are stored under their block label; the last one wins.
func extractInfoValues(w *recordWriter, blocks jsonval.Value) {
	for _, label := range blocks.Keys() {
		values, _ := blocks.Get(label).Get("values").List()
		for _, elem := range values {
			s, ok := elem.Text()
			if !ok {
				continue
			}
			if k, v, found := strings.Cut(s, "::"); found {
				w.set(k, jsonval.String(v))
			} else {
				w.set(label, jsonval.String(s))
			}
		}
	}
}

func envelopeValues(b *models.BronzeListing, payload jsonval.Value) map[string]jsonval.Value {
	if b == nil {
		out := make(map[string]jsonval.Value, len(envelopeFields))
		for _, k := range envelopeFields {
			out[k] = payload.Get(k)
		}
		return out
	}
	return map[string]jsonval.Value{
		"source":       jsonval.String(b.Source),
		"ad_id":        jsonval.Int(b.AdID),
		"url":          jsonval.FromAny(b.URL),
		"status":       jsonval.FromAny(b.Status),
		"created_at":   timeValue(b.CreatedAt),
		"modified_at":  timeValue(b.ModifiedAt),
		"pushed_up_at": timeValue(b.PushedUpAt),
	}
}

func timeValue(t *time.Time) jsonval.Value {
	if t == nil {
		return jsonval.Null
	}
	return jsonval.String(t.UTC().Format(time.RFC3339Nano))
}

type recordWriter struct {
	rec        Record
	owner      map[string]string
	stage      string
	collisions []Collision
}

func (w *recordWriter) set(key string, v jsonval.Value) {
	if prev, ok := w.owner[key]; ok && prev != w.stage {
		w.collisions = append(w.collisions, Collision{Key: key, First: prev, Second: w.stage})
	}
	w.owner[key] = w.stage
	w.rec[key] = v
}

func (w *recordWriter) flatten(node jsonval.Value, prefix string) {
	staged := Record{}
	Flatten(node, prefix, staged)
	keys := make([]string, 0, len(staged))
	for k := range staged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w.set(k, staged[k])
	}
}
