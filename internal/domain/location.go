package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Location resolution outcomes.
const (
	LocationFromGazetteer   = "gazetteer"
	LocationFromCoordinates = "coordinates"
	LocationFromDefault     = "default"
)

// RegionCenter is the fallback point when no specific place can be resolved.
var RegionCenter = Place{
	Key:    "salish_sea",
	Name:   "Salish Sea",
	Coords: Coordinates{Lat: 48.2, Lng: -123.0},
}

// Place is a named location in the gazetteer.
type Place struct {
	Key     string
	Name    string
	Coords  Coordinates
	Aliases []string // lowercase substrings matched against free text and node ids
}

// gazetteer is ordered most-specific first: hydrophone nodes and landmarks
// precede the islands and water bodies that contain them.
var gazetteer = []Place{
	{Key: "lime_kiln_point", Name: "Lime Kiln Point", Coords: Coordinates{Lat: 48.5159, Lng: -123.1524},
		Aliases: []string{"rpi_lime_kiln", "lime_kiln", "lime kiln", "whale watch park"}},
	{Key: "orcasound_lab", Name: "Orcasound Lab", Coords: Coordinates{Lat: 48.5583, Lng: -123.1736},
		Aliases: []string{"rpi_orcasound_lab", "orcasound_lab", "orcasound lab", "haro strait hydrophone"}},
	{Key: "north_san_juan_channel", Name: "North San Juan Channel", Coords: Coordinates{Lat: 48.5913, Lng: -123.0583},
		Aliases: []string{"rpi_north_sjc", "north_sjc", "north san juan channel"}},
	{Key: "port_townsend", Name: "Port Townsend", Coords: Coordinates{Lat: 48.1357, Lng: -122.7602},
		Aliases: []string{"rpi_port_townsend", "port_townsend", "port townsend"}},
	{Key: "bush_point", Name: "Bush Point", Coords: Coordinates{Lat: 48.0336, Lng: -122.6040},
		Aliases: []string{"rpi_bush_point", "bush_point", "bush point"}},
	{Key: "sunset_bay", Name: "Sunset Bay", Coords: Coordinates{Lat: 47.8654, Lng: -122.3336},
		Aliases: []string{"rpi_sunset_bay", "sunset_bay", "sunset bay"}},
	{Key: "point_robinson", Name: "Point Robinson", Coords: Coordinates{Lat: 47.3880, Lng: -122.3744},
		Aliases: []string{"rpi_point_robinson", "point_robinson", "point robinson", "pt robinson"}},
	{Key: "point_no_point", Name: "Point No Point", Coords: Coordinates{Lat: 47.9121, Lng: -122.5262},
		Aliases: []string{"point no point", "pt no point"}},
	{Key: "alki_point", Name: "Alki Point", Coords: Coordinates{Lat: 47.5763, Lng: -122.4206},
		Aliases: []string{"alki"}},
	{Key: "cattle_point", Name: "Cattle Point", Coords: Coordinates{Lat: 48.4517, Lng: -122.9630},
		Aliases: []string{"cattle point"}},
	{Key: "eagle_point", Name: "Eagle Point", Coords: Coordinates{Lat: 48.4606, Lng: -123.0289},
		Aliases: []string{"eagle point"}},
	{Key: "friday_harbor", Name: "Friday Harbor", Coords: Coordinates{Lat: 48.5343, Lng: -123.0171},
		Aliases: []string{"friday harbor"}},
	{Key: "east_point", Name: "East Point, Saturna Island", Coords: Coordinates{Lat: 48.7835, Lng: -123.0450},
		Aliases: []string{"east point", "saturna"}},
	{Key: "edmonds", Name: "Edmonds", Coords: Coordinates{Lat: 47.8107, Lng: -122.3774},
		Aliases: []string{"edmonds"}},
	{Key: "mukilteo", Name: "Mukilteo", Coords: Coordinates{Lat: 47.9445, Lng: -122.3046},
		Aliases: []string{"mukilteo"}},
	{Key: "anacortes", Name: "Anacortes", Coords: Coordinates{Lat: 48.5126, Lng: -122.6127},
		Aliases: []string{"anacortes"}},
	{Key: "bellingham", Name: "Bellingham", Coords: Coordinates{Lat: 48.7519, Lng: -122.4787},
		Aliases: []string{"bellingham"}},
	{Key: "victoria", Name: "Victoria, BC", Coords: Coordinates{Lat: 48.4284, Lng: -123.3656},
		Aliases: []string{"victoria"}},
	{Key: "vashon_island", Name: "Vashon Island", Coords: Coordinates{Lat: 47.4474, Lng: -122.4596},
		Aliases: []string{"vashon"}},
	{Key: "seattle", Name: "Seattle", Coords: Coordinates{Lat: 47.6062, Lng: -122.3321},
		Aliases: []string{"seattle", "elliott bay", "shilshole"}},
	{Key: "tacoma", Name: "Tacoma", Coords: Coordinates{Lat: 47.2529, Lng: -122.4443},
		Aliases: []string{"tacoma", "commencement bay"}},
	{Key: "san_juan_island", Name: "San Juan Island", Coords: Coordinates{Lat: 48.5320, Lng: -123.0850},
		Aliases: []string{"san juan island", "west side of san juan"}},
	{Key: "orcas_island", Name: "Orcas Island", Coords: Coordinates{Lat: 48.6543, Lng: -122.9390},
		Aliases: []string{"orcas island", "eastsound"}},
	{Key: "whidbey_island", Name: "Whidbey Island", Coords: Coordinates{Lat: 48.1700, Lng: -122.5800},
		Aliases: []string{"whidbey"}},
	{Key: "saratoga_passage", Name: "Saratoga Passage", Coords: Coordinates{Lat: 48.0800, Lng: -122.4800},
		Aliases: []string{"saratoga passage"}},
	{Key: "admiralty_inlet", Name: "Admiralty Inlet", Coords: Coordinates{Lat: 48.0300, Lng: -122.6500},
		Aliases: []string{"admiralty inlet"}},
	{Key: "hood_canal", Name: "Hood Canal", Coords: Coordinates{Lat: 47.6500, Lng: -122.9500},
		Aliases: []string{"hood canal"}},
	{Key: "haro_strait", Name: "Haro Strait", Coords: Coordinates{Lat: 48.5500, Lng: -123.2000},
		Aliases: []string{"haro strait"}},
	{Key: "rosario_strait", Name: "Rosario Strait", Coords: Coordinates{Lat: 48.4600, Lng: -122.7600},
		Aliases: []string{"rosario strait"}},
	{Key: "boundary_pass", Name: "Boundary Pass", Coords: Coordinates{Lat: 48.7600, Lng: -123.0000},
		Aliases: []string{"boundary pass"}},
	{Key: "juan_de_fuca", Name: "Strait of Juan de Fuca", Coords: Coordinates{Lat: 48.2500, Lng: -123.5000},
		Aliases: []string{"juan de fuca"}},
	{Key: "puget_sound", Name: "Puget Sound", Coords: Coordinates{Lat: 47.6000, Lng: -122.4000},
		Aliases: []string{"puget sound"}},
}

// aliasPatterns holds one word-bounded pattern per gazetteer alias, index-aligned with gazetteer.
var aliasPatterns = compileAliases(gazetteer)

func compileAliases(places []Place) [][]*regexp.Regexp {
	out := make([][]*regexp.Regexp, len(places))
	for i, p := range places {
		for _, alias := range p.Aliases {
			out[i] = append(out[i], regexp.MustCompile(`\b`+regexp.QuoteMeta(alias)+`\b`))
		}
	}
	return out
}

// coordPairRe matches an embedded "lat, lng" pair such as "48.51, -123.15".
var coordPairRe = regexp.MustCompile(`(-?\d{1,2}\.\d{2,})\s*,\s*(-?\d{1,3}\.\d{2,})`)

// Location is the outcome of resolving where a record was observed.
type Location struct {
	Key    string
	Name   string
	Coords Coordinates
	Source string // LocationFromGazetteer, LocationFromCoordinates, LocationFromDefault
}

// Specific reports whether the location is more precise than the region center.
func (l Location) Specific() bool {
	return l.Source != LocationFromDefault
}

// ResolveLocation resolves free text and an optional node identifier to a place.
// Order: gazetteer match on node then text, explicit coordinates, embedded
// coordinate pair in text, region center.
func ResolveLocation(text, node string, explicit *Coordinates) Location {
	if p, ok := MatchNode(node); ok {
		return placeLocation(p)
	}
	if p, ok := MatchPlace(text); ok {
		return placeLocation(p)
	}
	if explicit != nil && validCoords(*explicit) {
		return coordsLocation(*explicit)
	}
	if c, ok := parseCoordPair(text); ok {
		return coordsLocation(c)
	}
	return Location{
		Key:    RegionCenter.Key,
		Name:   RegionCenter.Name,
		Coords: RegionCenter.Coords,
		Source: LocationFromDefault,
	}
}

// MatchPlace returns the first gazetteer place with an alias appearing as a
// whole phrase in free text (case-insensitive).
func MatchPlace(text string) (Place, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return Place{}, false
	}
	for i, p := range gazetteer {
		for _, re := range aliasPatterns[i] {
			if re.MatchString(text) {
				return p, true
			}
		}
	}
	return Place{}, false
}

// MatchNode returns the first gazetteer place with an alias contained in a node
// identifier such as "rpi_lime_kiln" (case-insensitive substring).
func MatchNode(node string) (Place, bool) {
	node = strings.ToLower(strings.TrimSpace(node))
	if node == "" {
		return Place{}, false
	}
	for _, p := range gazetteer {
		for _, alias := range p.Aliases {
			if strings.Contains(node, alias) {
				return p, true
			}
		}
	}
	return Place{}, false
}

// GridKey buckets coordinates to two decimal places (roughly 1 km).
func GridKey(c Coordinates) string {
	return fmt.Sprintf("grid_%.2f_%.2f", c.Lat, c.Lng)
}

func placeLocation(p Place) Location {
	return Location{Key: p.Key, Name: p.Name, Coords: p.Coords, Source: LocationFromGazetteer}
}

func coordsLocation(c Coordinates) Location {
	return Location{
		Key:    GridKey(c),
		Name:   fmt.Sprintf("Reported position %.3f, %.3f", c.Lat, c.Lng),
		Coords: c,
		Source: LocationFromCoordinates,
	}
}

func parseCoordPair(text string) (Coordinates, bool) {
	m := coordPairRe.FindStringSubmatch(text)
	if len(m) != 3 {
		return Coordinates{}, false
	}
	lat, errLat := strconv.ParseFloat(m[1], 64)
	lng, errLng := strconv.ParseFloat(m[2], 64)
	if errLat != nil || errLng != nil {
		return Coordinates{}, false
	}
	c := Coordinates{Lat: lat, Lng: lng}
	return c, validCoords(c)
}

func validCoords(c Coordinates) bool {
	if c.Lat == 0 && c.Lng == 0 {
		return false
	}
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}
