package compliance

import (
	"fmt"
	"time"
)

// ZoneResolver maps a contact subject to the time zone its window is judged in.
type ZoneResolver interface {
	Resolve(subject Subject) *time.Location
}

// FixedZone resolves every subject to one zone.
type FixedZone struct {
	loc *time.Location
}

// NewFixedZone loads name (for example "America/Denver").
func NewFixedZone(name string) (*FixedZone, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load compliance zone %q: %w", name, err)
	}
	return &FixedZone{loc: loc}, nil
}

func (z *FixedZone) Resolve(Subject) *time.Location {
	return z.loc
}

// AreaCodeResolver resolves NANP phone numbers by area code and falls back
// to a default zone for unknown or missing numbers.
type AreaCodeResolver struct {
	fallback *time.Location
	zones    map[string]*time.Location
}

// NewAreaCodeResolver builds a resolver over the built-in area code table.
func NewAreaCodeResolver(fallback *time.Location) (*AreaCodeResolver, error) {
	r := &AreaCodeResolver{fallback: fallback, zones: make(map[string]*time.Location, 256)}
	for zone, codes := range areaCodesByZone {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			return nil, fmt.Errorf("load zone %q: %w", zone, err)
		}
		for _, code := range codes {
			r.zones[code] = loc
		}
	}
	return r, nil
}

func (r *AreaCodeResolver) Resolve(subject Subject) *time.Location {
	if code := AreaCode(subject.Phone); code != "" {
		if loc, ok := r.zones[code]; ok {
			return loc
		}
	}
	return r.fallback
}

// AreaCode extracts the three-digit NANP area code, or "" when phone is not
// a ten digit number with optional leading country code 1.
func AreaCode(phone string) string {
	digits := make([]byte, 0, 11)
	for i := 0; i < len(phone); i++ {
		if phone[i] >= '0' && phone[i] <= '9' {
			digits = append(digits, phone[i])
		}
	}
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return ""
	}
	return string(digits[:3])
}

// Area codes that span two zones are listed under the zone covering most of
// their subscribers.
var areaCodesByZone = map[string][]string{
	"America/Denver": {
		"303", "719", "720", "970", "983", // CO
		"385", "435", "801", // UT
		"208", "986", // ID
		"406",        // MT
		"505", "575", // NM
		"307", // WY
	},
	"America/Phoenix": {"480", "520", "602", "623", "928"},
	"America/Los_Angeles": {
		"209", "213", "279", "310", "323", "341", "350", "369", "408", "415", "424", "442",
		"510", "530", "559", "562", "619", "626", "628", "650", "657", "661", "669", "707",
		"714", "747", "760", "805", "818", "820", "831", "840", "858", "909", "916", "925",
		"949", "951", // CA
		"206", "253", "360", "425", "509", "564", // WA
		"458", "503", "541", "971", // OR
		"702", "725", "775", // NV
	},
	"America/Chicago": {
		"205", "251", "256", "334", "659", "938", // AL
		"479", "501", "870", // AR
		"217", "224", "309", "312", "331", "447", "464", "618", "630", "708", "773", "779", "815", "847", "872", // IL
		"319", "515", "563", "641", "712", // IA
		"316", "620", "785", "913", // KS
		"225", "318", "337", "504", "985", // LA
		"218", "320", "507", "612", "651", "763", "952", // MN
		"228", "601", "662", "769", // MS
		"314", "417", "557", "573", "636", "660", "816", "975", // MO
		"308", "402", "531", // NE
		"701",                             // ND
		"405", "539", "572", "580", "918", // OK
		"605",                                                                                                                 // SD
		"210", "214", "254", "281", "325", "346", "361", "409", "430", "432", "469", "512", "682", "713", "726", "737", "806", // TX
		"817", "830", "832", "903", "915", "936", "940", "945", "956", "972", "979",
		"262", "274", "414", "534", "608", "715", "920", // WI
		"615", "629", "731", "901", "931", // TN
	},
	"America/New_York": {
		"203", "475", "860", "959", // CT
		"302",                                                                                                          // DE
		"202",                                                                                                          // DC
		"239", "305", "321", "352", "386", "407", "561", "727", "754", "772", "786", "813", "863", "904", "941", "954", // FL
		"229", "404", "470", "478", "678", "706", "762", "770", "912", // GA
		"207",                             // ME
		"240", "301", "410", "443", "667", // MD
		"339", "351", "413", "508", "617", "774", "781", "857", "978", // MA
		"231", "248", "269", "313", "517", "586", "616", "734", "810", "947", "989", // MI
		"603",                                                                // NH
		"201", "551", "609", "640", "732", "848", "856", "862", "908", "973", // NJ
		"212", "315", "332", "347", "516", "518", "585", "607", "631", "646", "680", "716", "718", "838", "845", "914", "917", "929", "934", // NY
		"252", "336", "704", "743", "828", "910", "919", "980", "984", // NC
		"216", "220", "234", "330", "380", "419", "440", "513", "567", "614", "740", "937", // OH
		"215", "223", "267", "272", "412", "445", "484", "570", "610", "717", "724", "814", "878", // PA
		"401",                             // RI
		"803", "839", "843", "854", "864", // SC
		"802",                                           // VT
		"276", "434", "540", "571", "703", "757", "804", // VA
		"304", "681", // WV
		"219", "260", "317", "463", "574", "765", "812", "930", // IN
		"270", "364", "502", "606", "859", // KY
	},
	"America/Anchorage": {"907"},
	"Pacific/Honolulu":  {"808"},
}
