package silver

import (
	"strings"

	"realestate_ai/jsonval"
)

type ColumnType int

const (
	TypeInt ColumnType = iota
	TypeFloat
	TypeString
	TypeCategory
	TypeBool
	TypeTime
	TypeStringList
)

func (t ColumnType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeCategory:
		return "category"
	case TypeBool:
		return "bool"
	case TypeTime:
		return "time"
	case TypeStringList:
		return "string_list"
	}
	return "unknown"
}

// Column is one column of the silver table. The value is read from the
// first non-null source key, or computed by Derive when set.
type Column struct {
	Name    string
	Type    ColumnType
	Sources []string
	Digits  int
	Derive  func(Record) any
}

func col(name string, typ ColumnType, sources ...string) Column {
	if len(sources) == 0 {
		sources = []string{name}
	}
	return Column{Name: name, Type: typ, Sources: sources}
}

func floatCol(name string, digits int, sources ...string) Column {
	c := col(name, TypeFloat, sources...)
	c.Digits = digits
	return c
}

const (
	prBuilding = "property_raw__buildingProperties__"
	building   = "buildingProperties__"
)

// Columns is the silver schema in table order. Any flattened key not read
// by a column is dropped.
var Columns = []Column{
	col("source", TypeString),
	col("ad_id", TypeInt),
	col("url", TypeString),
	col("status", TypeCategory),
	col("created_at", TypeTime),
	col("modified_at", TypeTime),
	col("pushed_up_at", TypeTime),

	floatCol("m", 2, "m", "area_m2"),
	col("price", TypeInt, "price", "price_pln"),
	col("floor", TypeInt),
	col("rooms_num", TypeInt, "rooms_num", "rooms"),
	floatCol("price_per_m", 2, "price_per_m", "price_per_m2_pln"),

	col("property_type", TypeCategory, "property_raw__type"),
	col("property_condition", TypeCategory, "property_raw__condition"),
	col("property_ownership", TypeCategory, "property_raw__ownership"),
	col("property_areas", TypeStringList, "property_raw__properties__areas"),
	col("property_kitchen", TypeCategory, "property_raw__properties__kitchen"),
	col("property_equipment", TypeStringList, "property_raw__properties__equipment"),

	floatCol("latitude", 6),
	floatCol("longitude", 6),
	col("street", TypeString),
	col("district", TypeString),
	col("city", TypeString),
	col("county", TypeString),
	col("province", TypeString),

	col("title", TypeString),
	col("seo_description", TypeString),
	col("description_text", TypeString),

	col("windows_type", TypeCategory),
	col("building_type", TypeCategory),
	col("build_year", TypeInt, "build_year", "year_built"),
	col("building_floors_num", TypeInt, "building_floors_num", "building_floors"),
	col("lift", TypeBool),
	col("building_heating", TypeCategory, prBuilding+"heating", building+"heating"),
	col("building_material", TypeCategory, prBuilding+"material", building+"material"),
	col("energy_certificate", TypeCategory),

	col("free_from", TypeTime),
	col("market", TypeCategory),
	col("construction_status", TypeCategory),
	col("advertiser_type", TypeCategory),
	col("advert_type", TypeCategory),
	col("agency_name", TypeString),
	floatCol("rent", 2, "rent_pln"),

	col("security_types", TypeStringList, prBuilding+"security", building+"security"),
	col("features", TypeStringList),
	col("building_conveniences", TypeStringList, prBuilding+"conveniences", building+"conveniences"),
	{Name: "internet", Type: TypeBool, Derive: hasInternet},
	{Name: "garage", Type: TypeBool, Derive: hasGarage},
	col("extra_feature", TypeCategory, "extras_types"),
	col("media_types", TypeCategory),
	col("equipment_types", TypeCategory),
	col("remote_services", TypeCategory),
}

var columnIndex = func() map[string]int {
	idx := make(map[string]int, len(Columns))
	for i, c := range Columns {
		idx[c.Name] = i
	}
	return idx
}()

// ColumnNames returns the silver column names in table order.
func ColumnNames() []string {
	names := make([]string, len(Columns))
	for i, c := range Columns {
		names[i] = c.Name
	}
	return names
}

func lookup(rec Record, keys []string) jsonval.Value {
	for _, k := range keys {
		if v, ok := rec[k]; ok && !v.IsNull() {
			return v
		}
	}
	return jsonval.Null
}

func hasInternet(rec Record) any {
	conveniences := lookup(rec, []string{prBuilding + "conveniences", building + "conveniences"})
	items, ok := conveniences.List()
	if !ok {
		return false
	}
	for _, it := range items {
		if s, ok := it.Str(); ok && strings.EqualFold(s, "INTERNET") {
			return true
		}
	}
	return false
}

// hasGarage is true when the listing carries no "extras_types-85" value.
func hasGarage(rec Record) any {
	return lookup(rec, []string{"extras_types-85"}).IsNull()
}
