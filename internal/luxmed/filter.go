package luxmed

import (
	"fmt"
	"strconv"
	"strings"
)

// Filter scopes a slot search. It is immutable for the process lifetime.
// Empty FacilityIDs/DoctorIDs mean "any facility"/"any doctor".
type Filter struct {
	CityID           int
	ServiceVariantID int
	FacilityIDs      []int
	DoctorIDs        []int
	LookupDays       int
}

func (f Filter) Validate() error {
	if f.CityID <= 0 {
		return fmt.Errorf("city id required")
	}
	if f.ServiceVariantID <= 0 {
		return fmt.Errorf("service variant id required")
	}
	if f.LookupDays < 1 {
		return fmt.Errorf("lookup window must be at least one day")
	}
	return nil
}

type query struct {
	facilityID int
	doctorID   int
}

// combinations expands the facility/doctor id sets into the single-id
// queries the portal accepts. Empty sets collapse to one "any" query.
func (f Filter) combinations() []query {
	facilities := f.FacilityIDs
	if len(facilities) == 0 {
		facilities = []int{AnyID}
	}
	doctors := f.DoctorIDs
	if len(doctors) == 0 {
		doctors = []int{AnyID}
	}
	out := make([]query, 0, len(facilities)*len(doctors))
	for _, fa := range facilities {
		for _, d := range doctors {
			out = append(out, query{facilityID: fa, doctorID: d})
		}
	}
	return out
}

// ParseLocatorID parses the legacy "cityId*serviceId*clinicId*doctorId"
// shorthand, where -1 stands for any clinic or any doctor.
func ParseLocatorID(s string) (Filter, error) {
	parts := strings.Split(strings.TrimSpace(s), "*")
	if len(parts) != 4 {
		return Filter{}, fmt.Errorf("locator id %q: want cityId*serviceId*clinicId*doctorId", s)
	}
	ids := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Filter{}, fmt.Errorf("locator id %q: %w", s, err)
		}
		ids[i] = n
	}
	f := Filter{CityID: ids[0], ServiceVariantID: ids[1]}
	if ids[2] != AnyID {
		f.FacilityIDs = []int{ids[2]}
	}
	if ids[3] != AnyID {
		f.DoctorIDs = []int{ids[3]}
	}
	return f, nil
}
