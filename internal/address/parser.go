package address

import (
	"regexp"
	"strconv"
	"strings"
)

// Parsed holds the components extracted from a raw address string. It is a
// derived, per-record value; block identity is keyed on HouseNumber and
// StreetName only.
type Parsed struct {
	// HouseNumber is the leading digit run. For multi-unit addresses
	// ("1234-1236 Woodward Ave") only the first number is kept.
	HouseNumber int `json:"house_number"`

	// Directional is the single-letter prefix (N/S/E/W) when present. It is
	// also folded into StreetName, so it never discriminates block ids on
	// its own.
	Directional string `json:"directional,omitempty"`

	// StreetName is the normalized street name (see Normalize), including
	// the directional prefix when one was parsed.
	StreetName string `json:"street_name"`

	// StreetType is the canonical abbreviation (ST, AVE, ...) when the raw
	// address carried a recognized street-type token.
	StreetType string `json:"street_type,omitempty"`

	// RawStreetLabel is the uppercased street portion as it appeared in the
	// input, kept for display.
	RawStreetLabel string `json:"raw_street_label"`
}

// streetTypes maps every accepted street-type token (abbreviation or full
// word) to its canonical abbreviation.
var streetTypes = map[string]string{
	"ST": "ST", "STREET": "ST",
	"AVE": "AVE", "AVENUE": "AVE",
	"RD": "RD", "ROAD": "RD",
	"BLVD": "BLVD", "BOULEVARD": "BLVD",
	"DR": "DR", "DRIVE": "DR",
	"LN": "LN", "LANE": "LN",
	"CT": "CT", "COURT": "CT",
	"PL": "PL", "PLACE": "PL",
	"WAY": "WAY",
	"PKWY": "PKWY", "PARKWAY": "PKWY",
	"HWY": "HWY", "HIGHWAY": "HWY",
	"CIR": "CIR", "CIRCLE": "CIR",
	"TER": "TER", "TERRACE": "TER",
}

var (
	// primaryPattern matches "<number>[-<number>] [directional] <street
	// words> <street type>". Street words are alphabetic only; numbered
	// streets ("7 Mile Rd") intentionally fall through to the fallback.
	primaryPattern = regexp.MustCompile(`^(\d+)(?:-\d+)?\s+(?:([NSEW])\.?\s+)?([A-Z][A-Z\s.']*?)\s+([A-Z]+)\.?$`)

	// fallbackPattern matches any "<number> <remaining text>" form; the
	// remaining text becomes the street name verbatim.
	fallbackPattern = regexp.MustCompile(`^(\d+)(?:-\d+)?\s+(.+)$`)
)

// Parse extracts the house number and street components from a raw address.
// It returns nil for empty input and for addresses with no leading digit run;
// an unparsable address is a recoverable condition, never an error.
func Parse(raw string) *Parsed {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return nil
	}

	if m := primaryPattern.FindStringSubmatch(s); m != nil {
		if canonical, ok := streetTypes[m[4]]; ok {
			num, err := strconv.Atoi(m[1])
			if err == nil {
				name := m[3]
				if m[2] != "" {
					name = m[2] + " " + name
				}
				return &Parsed{
					HouseNumber:    num,
					Directional:    m[2],
					StreetName:     Normalize(name),
					StreetType:     canonical,
					RawStreetLabel: name + " " + m[4],
				}
			}
		}
	}

	m := fallbackPattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	num, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &Parsed{
		HouseNumber:    num,
		StreetName:     Normalize(m[2]),
		RawStreetLabel: strings.TrimSpace(m[2]),
	}
}
