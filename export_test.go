package conneg

// Exports private functions but only when testing so they are not part of the public
// API but tests can be run in the conneg_test package (works because of the _test.go
// suffix appended to this filename).
var (
	CacheKey      = cacheKey
	Normalize     = normalize
	SplitList     = splitList
	EncodeMatch   = encodeMatch
	DecodeMatch   = decodeMatch
	AddVary       = addVary
	FormatQuality = formatQuality
)
