package domain

import "fmt"

// Sector classifies an instrument for sector-wide market events.
type Sector string

const (
	SectorTechnology    Sector = "Technology"
	SectorFinance       Sector = "Finance"
	SectorHealthcare    Sector = "Healthcare"
	SectorEnergy        Sector = "Energy"
	SectorRetail        Sector = "Retail"
	SectorAutomotive    Sector = "Automotive"
	SectorEntertainment Sector = "Entertainment"
	SectorTelecom       Sector = "Telecom"
)

// Sectors returns every known sector in display order.
func Sectors() []Sector {
	return []Sector{
		SectorTechnology,
		SectorFinance,
		SectorHealthcare,
		SectorEnergy,
		SectorRetail,
		SectorAutomotive,
		SectorEntertainment,
		SectorTelecom,
	}
}

// ParseSector returns the Sector named s, or an error if s is not one of
// the known sectors. Matching is exact.
func ParseSector(s string) (Sector, error) {
	for _, sec := range Sectors() {
		if string(sec) == s {
			return sec, nil
		}
	}
	return "", fmt.Errorf("unknown sector %q", s)
}

// SectorSet is a set of sectors used to target shocks.
type SectorSet map[Sector]struct{}

// NewSectorSet builds a set from a list of sectors.
func NewSectorSet(sectors ...Sector) SectorSet {
	set := make(SectorSet, len(sectors))
	for _, s := range sectors {
		set[s] = struct{}{}
	}
	return set
}

// Contains reports whether s is in the set.
func (set SectorSet) Contains(s Sector) bool {
	_, ok := set[s]
	return ok
}
