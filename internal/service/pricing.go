package service

import (
	"fmt"
	"strings"

	"github.com/melodiemoment/api/internal/constants"
)

// PricingInput commercial attributes of an order
type PricingInput struct {
	PackageType     string `json:"packageType"`
	SelectedBundle  string `json:"selectedBundle"`
	BumpKaraoke     bool   `json:"bumpKaraoke"`
	BumpRush        bool   `json:"bumpRush"`
	BumpGift        bool   `json:"bumpGift"`
	HasCustomLyrics bool   `json:"hasCustomLyrics"`
	CustomLyrics    string `json:"customLyrics"`
}

// LineItem one breakdown row in whole euros
type LineItem struct {
	Label string `json:"label"`
	Price int    `json:"price"`
}

type packageInfo struct {
	label string
	price int
}

var packages = map[string]packageInfo{
	constants.PackageBasis:   {label: "Melodie Basis", price: constants.PriceBasis},
	constants.PackagePlus:    {label: "Melodie Plus", price: constants.PricePlus},
	constants.PackagePremium: {label: "Melodie Premium", price: constants.PricePremium},
}

// PackagePrice returns the base price, 0 for unknown packages.
func PackagePrice(packageType string) int {
	return packages[packageType].price
}

// CalculateTotal returns the order total in whole euros.
func CalculateTotal(input PricingInput) int {
	total := 0
	for _, item := range OrderBreakdown(input) {
		total += item.Price
	}
	return total
}

// OrderBreakdown returns the priced line items. The hochzeits bundle
// replaces package and bumps except rush; the perfekt bundle keeps the
// package and replaces all bumps.
func OrderBreakdown(input PricingInput) []LineItem {
	items := make([]LineItem, 0, 5)
	switch input.SelectedBundle {
	case constants.BundleHochzeits:
		items = append(items, LineItem{Label: "Hochzeits-Bundle", Price: constants.PriceHochzeitBundle})
		if input.BumpRush {
			items = append(items, LineItem{Label: "+Express", Price: constants.PriceRush})
		}
	case constants.BundlePerfekt:
		items = appendPackage(items, input.PackageType)
		items = append(items, LineItem{Label: "Perfekt-Bundle", Price: constants.PricePerfektBundle})
	default:
		items = appendPackage(items, input.PackageType)
		if input.BumpKaraoke {
			items = append(items, LineItem{Label: "+Karaoke", Price: constants.PriceKaraoke})
		}
		if input.BumpRush {
			items = append(items, LineItem{Label: "+Express", Price: constants.PriceRush})
		}
		if input.BumpGift {
			items = append(items, LineItem{Label: "+Geschenk", Price: constants.PriceGift})
		}
	}
	if input.HasCustomLyrics && strings.TrimSpace(input.CustomLyrics) != "" {
		items = append(items, LineItem{Label: "+Eigener Songtext", Price: constants.PriceCustomLyrics})
	}
	return items
}

// Stored rows with an unknown package still price at 0; intake rejects them.
func appendPackage(items []LineItem, packageType string) []LineItem {
	info, ok := packages[packageType]
	if !ok {
		return items
	}
	return append(items, LineItem{Label: info.label, Price: info.price})
}

// ValidatePricingInput rejects unknown packages and bundles at intake.
func ValidatePricingInput(input PricingInput) error {
	if input.SelectedBundle != constants.BundleHochzeits {
		if _, ok := packages[input.PackageType]; !ok {
			return fmt.Errorf("%w: %q", ErrPackageInvalid, input.PackageType)
		}
	}
	switch input.SelectedBundle {
	case "", constants.BundleNone, constants.BundleHochzeits, constants.BundlePerfekt:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrBundleInvalid, input.SelectedBundle)
	}
}

// IsValidPackage reports whether packageType is sold.
func IsValidPackage(packageType string) bool {
	_, ok := packages[packageType]
	return ok
}

// IsValidBundle reports whether bundle is sold.
func IsValidBundle(bundle string) bool {
	switch bundle {
	case constants.BundleNone, constants.BundleHochzeits, constants.BundlePerfekt:
		return true
	}
	return false
}

// PackageLabel returns the display name, or the raw value when unknown.
func PackageLabel(packageType string) string {
	if info, ok := packages[packageType]; ok {
		return info.label
	}
	return packageType
}
