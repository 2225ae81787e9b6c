package maps

import (
	"strings"

	"github.com/angelmondragon/smokeshop-backend/pkg/types"
)

// PostalAddress folds the Places address components into the storefront's
// address shape. Name and phone are left for the caller.
func (p PlaceDetails) PostalAddress() types.Address {
	var streetNumber, route string
	var addr types.Address
	for _, comp := range p.AddressComponents {
		switch {
		case hasType(comp, "street_number"):
			streetNumber = comp.LongName
		case hasType(comp, "route"):
			route = comp.ShortName
		case hasType(comp, "subpremise"):
			line2 := "#" + strings.TrimPrefix(comp.LongName, "#")
			addr.Line2 = &line2
		case hasType(comp, "locality"), hasType(comp, "postal_town"):
			if addr.City == "" {
				addr.City = comp.LongName
			}
		case hasType(comp, "sublocality") && addr.City == "":
			addr.City = comp.LongName
		case hasType(comp, "administrative_area_level_1"):
			addr.State = comp.ShortName
		case hasType(comp, "postal_code"):
			addr.PostalCode = comp.LongName
		case hasType(comp, "country"):
			addr.Country = comp.ShortName
		}
	}
	addr.Line1 = strings.TrimSpace(streetNumber + " " + route)
	return addr.Normalize()
}

func hasType(comp AddressComponent, want string) bool {
	for _, t := range comp.Types {
		if t == want {
			return true
		}
	}
	return false
}
