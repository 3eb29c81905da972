// Package tags provides the dictionary codec for the compacted tag streams.
// Each tag is written as a single signed code byte, optionally followed by
// free text: a positive code stands for a whole well-known key=value pair, a
// negative code for a well-known key with the value as NUL-terminated text,
// and code 0 for key and value both as NUL-terminated text. A tag list ends
// with the terminator byte.
//
// The dictionaries are fixed so that codes stay stable across processes and
// loads; they cover the most frequent keys and pairs of the global OSM
// database.
package tags

import "bytes"

// Terminator ends a tag list in the stream.
const Terminator = 0x7F

// Tag is one decoded key/value pair.
type Tag struct {
	Key string
	Val string
}

// knownKeys maps code -(i+1) to the key at index i. Values for these keys are
// written as free text.
var knownKeys = []string{
	"name",
	"highway",
	"building",
	"natural",
	"surface",
	"landuse",
	"waterway",
	"power",
	"amenity",
	"barrier",
	"ref",
	"addr:housenumber",
	"addr:street",
	"addr:city",
	"addr:postcode",
	"addr:country",
	"maxspeed",
	"access",
	"railway",
	"leisure",
	"layer",
	"ele",
	"place",
	"foot",
	"bicycle",
	"service",
	"width",
	"operator",
	"note",
	"is_in",
	"crossing",
	"shop",
	"boundary",
	"admin_level",
	"type",
	"height",
	"start_date",
	"wikidata",
	"wikipedia",
	"tracktype",
	"lanes",
	"man_made",
	"entrance",
	"emergency",
	"public_transport",
	"sport",
	"tourism",
	"religion",
	"denomination",
	"old_name",
	"alt_name",
	"int_name",
	"name:en",
	"description",
}

// knownPairs maps code i+1 to the pair at index i. These tags are written as
// the code byte alone.
var knownPairs = []Tag{
	{"building", "yes"},
	{"building", "house"},
	{"building", "residential"},
	{"building", "garage"},
	{"building", "apartments"},
	{"building", "hut"},
	{"highway", "residential"},
	{"highway", "service"},
	{"highway", "track"},
	{"highway", "unclassified"},
	{"highway", "footway"},
	{"highway", "path"},
	{"highway", "tertiary"},
	{"highway", "secondary"},
	{"highway", "primary"},
	{"highway", "trunk"},
	{"highway", "motorway"},
	{"highway", "motorway_link"},
	{"highway", "cycleway"},
	{"highway", "steps"},
	{"highway", "living_street"},
	{"highway", "pedestrian"},
	{"highway", "bus_stop"},
	{"highway", "crossing"},
	{"highway", "turning_circle"},
	{"highway", "street_lamp"},
	{"highway", "traffic_signals"},
	{"natural", "tree"},
	{"natural", "water"},
	{"natural", "wood"},
	{"natural", "scrub"},
	{"natural", "wetland"},
	{"natural", "coastline"},
	{"natural", "grassland"},
	{"landuse", "forest"},
	{"landuse", "grass"},
	{"landuse", "residential"},
	{"landuse", "farmland"},
	{"landuse", "meadow"},
	{"landuse", "orchard"},
	{"landuse", "farmyard"},
	{"waterway", "stream"},
	{"waterway", "river"},
	{"waterway", "ditch"},
	{"waterway", "drain"},
	{"power", "tower"},
	{"power", "pole"},
	{"power", "line"},
	{"power", "minor_line"},
	{"power", "generator"},
	{"amenity", "parking"},
	{"amenity", "bench"},
	{"amenity", "place_of_worship"},
	{"amenity", "school"},
	{"amenity", "restaurant"},
	{"barrier", "fence"},
	{"barrier", "gate"},
	{"barrier", "wall"},
	{"barrier", "hedge"},
	{"barrier", "bollard"},
	{"oneway", "yes"},
	{"oneway", "no"},
	{"bridge", "yes"},
	{"tunnel", "yes"},
	{"access", "private"},
	{"access", "yes"},
	{"access", "no"},
	{"surface", "asphalt"},
	{"surface", "unpaved"},
	{"surface", "paved"},
	{"surface", "gravel"},
	{"surface", "ground"},
	{"surface", "dirt"},
	{"surface", "grass"},
	{"surface", "concrete"},
	{"surface", "paving_stones"},
	{"service", "driveway"},
	{"service", "parking_aisle"},
	{"service", "alley"},
	{"railway", "rail"},
	{"railway", "level_crossing"},
	{"railway", "abandoned"},
	{"leisure", "pitch"},
	{"leisure", "park"},
	{"leisure", "garden"},
	{"leisure", "playground"},
	{"leisure", "swimming_pool"},
	{"wall", "no"},
	{"foot", "yes"},
	{"foot", "designated"},
	{"bicycle", "yes"},
	{"bicycle", "no"},
	{"lit", "yes"},
	{"layer", "1"},
	{"layer", "-1"},
	{"entrance", "yes"},
	{"noexit", "yes"},
	{"area", "yes"},
	{"boundary", "administrative"},
	{"place", "locality"},
	{"place", "village"},
	{"place", "hamlet"},
	{"man_made", "survey_point"},
	{"man_made", "pipeline"},
	{"tracktype", "grade1"},
	{"tracktype", "grade2"},
	{"tracktype", "grade3"},
	{"tracktype", "grade4"},
	{"tracktype", "grade5"},
	{"crossing", "zebra"},
	{"crossing", "uncontrolled"},
	{"crossing", "traffic_signals"},
	{"public_transport", "platform"},
	{"public_transport", "stop_position"},
	{"emergency", "fire_hydrant"},
	{"amenity", "waste_basket"},
	{"amenity", "drinking_water"},
	{"amenity", "fuel"},
	{"amenity", "bank"},
	{"amenity", "cafe"},
	{"amenity", "fast_food"},
	{"amenity", "post_box"},
	{"amenity", "shelter"},
	{"amenity", "toilets"},
	{"shop", "supermarket"},
}

var keyCodes map[string]int8
var pairCodes map[Tag]int8

func init() {
	if len(knownPairs) > 126 {
		// Code 127 is the list terminator and must stay unused.
		panic("tag pair dictionary exceeds the positive code range")
	}
	if len(knownKeys) > 128 {
		panic("tag key dictionary exceeds the negative code range")
	}
	keyCodes = make(map[string]int8, len(knownKeys))
	for i, key := range knownKeys {
		keyCodes[key] = int8(-(i + 1))
	}
	pairCodes = make(map[Tag]int8, len(knownPairs))
	for i, pair := range knownPairs {
		pairCodes[pair] = int8(i + 1)
	}
}

// Encode returns the code byte for the given pair: positive when the whole
// pair is in the dictionary, negative when only the key is, and 0 when neither
// is known and both strings follow as free text.
func Encode(key string, val string) int8 {
	code, ok := pairCodes[Tag{Key: key, Val: val}]
	if ok {
		return code
	}
	code, ok = keyCodes[key]
	if ok {
		return code
	}
	return 0
}

// Decode reads one tag record from the beginning of buf and returns the pair
// together with the number of bytes consumed. The caller must check for the
// terminator before calling.
func Decode(buf []byte) (string, string, int) {
	code := int8(buf[0])
	if code > 0 {
		pair := knownPairs[code-1]
		return pair.Key, pair.Val, 1
	}
	if code < 0 {
		val, n := readString(buf[1:])
		return knownKeys[-code-1], val, 1 + n
	}
	key, n := readString(buf[1:])
	val, m := readString(buf[1+n:])
	return key, val, 1 + n + m
}

// DecodeAll decodes a whole tag list up to, but not including, the terminator.
func DecodeAll(buf []byte) []Tag {
	var decoded []Tag
	pos := 0
	for buf[pos] != Terminator {
		key, val, n := Decode(buf[pos:])
		decoded = append(decoded, Tag{Key: key, Val: val})
		pos += n
	}
	return decoded
}

// ListBytes returns the raw bytes of the tag list at the beginning of buf,
// including the terminator.
func ListBytes(buf []byte) []byte {
	pos := 0
	for buf[pos] != Terminator {
		_, _, n := Decode(buf[pos:])
		pos += n
	}
	return buf[:pos+1]
}

func readString(buf []byte) (string, int) {
	end := bytes.IndexByte(buf, 0)
	return string(buf[:end]), end + 1
}
