package livedata

// Well-known field names used by feed adapters and the standard
// normalization rules. Schemes are free to define their own names; these
// cover the common price fields.
const (
	FieldBid    = "BID"
	FieldAsk    = "ASK"
	FieldLast   = "LAST"
	FieldMid    = "MID"
	FieldVolume = "VOLUME"
)
