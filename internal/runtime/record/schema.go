package record

// Field is one entry of the fixed record schema.
type Field struct {
	Name    string
	Default string
}

// ActivityDateTimeField defaults to a single space instead of an empty string.
// Existing consumers depend on that value, so it is reproduced exactly.
const ActivityDateTimeField = "ACTIVITY_DATETIME_16"

// schema lists the known fields in their canonical order. It is process-wide
// immutable configuration; callers get copies through Schema.
var schema = []Field{
	{Name: "ENTITLEMENT_CODE_6"},
	{Name: "DELAY_MINS_269"},
	{Name: "BID_PRICE_12"},
	{Name: "ASK_PRICE_10"},
	{Name: "CONTRIBUTOR_ID_248"},
	{Name: "CITY_ID_810"},
	{Name: "CITY_CODE_1271"},
	{Name: "REGION_ID_811"},
	{Name: "REGION_CODE_1270"},
	{Name: "TRADE_PRICE_8"},
	{Name: "TRADE_TREND_432"},
	{Name: "TRADE_TICK_316"},
	{Name: "CHG_361"},
	{Name: "QUOTE_OFFICIAL_DATE_824"},
	{Name: "QUOTE_OFFICIAL_TIME_25"},
	{Name: "DESKTOP_ELIGIBILITY_IND_1662"},
	{Name: ActivityDateTimeField, Default: " "},
	{Name: "QUOTE_DATETIME_20"},
	{Name: "TRADE_DATETIME_18"},
	{Name: "PCT_CHG_362"},
	{Name: "CONFLATE_INDICATOR_5201"},
	{Name: "ENUM_SRC_ID_4"},
	{Name: "SYMBOL_TICKER_5"},
	{Name: "FRACTIONAL_IND_670"},
	{Name: "CURRENCY_STRING_435"},
	{Name: "TRADE_OPEN_400"},
	{Name: "TRADE_HIGH_388"},
	{Name: "TRADE_LOW_394"},
	{Name: "CURRENT_PRICE_14"},
	{Name: "YEST_TRADE_CLOSE_407"},
	{Name: "DISPLAY_PRECISION_280"},
	{Name: "PREV_TRADE_DATE_451"},
	{Name: "RECORD_STALE_IND_5076"},
}

var knownFields = func() map[string]struct{} {
	m := make(map[string]struct{}, len(schema))
	for _, f := range schema {
		m[f.Name] = struct{}{}
	}
	return m
}()

// Schema returns a copy of the known fields in canonical order.
func Schema() []Field {
	out := make([]Field, len(schema))
	copy(out, schema)
	return out
}

// IsKnownField reports whether name is part of the fixed schema.
func IsKnownField(name string) bool {
	_, ok := knownFields[name]
	return ok
}
