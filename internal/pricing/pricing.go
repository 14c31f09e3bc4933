package pricing

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/levelapp/funnel/internal/domain"
)

// Line is one labeled contribution to a price.
type Line struct {
	Label  string `json:"label"`
	Amount int    `json:"amount"`
}

// EstimateResult is the visitor-facing price band.
type EstimateResult struct {
	Min       int    `json:"min"`
	Max       int    `json:"max"`
	Breakdown []Line `json:"breakdown"`
}

// Total returns the sum of the breakdown amounts.
func (r EstimateResult) Total() int {
	total := 0
	for _, l := range r.Breakdown {
		total += l.Amount
	}
	return total
}

// Estimate prices a calculator selection. Lines are recorded in the order
// they are applied. The app type modifier scales the running total of base
// and extra screens, so it is applied before every flat surcharge.
// Unknown identifiers contribute nothing.
func Estimate(sel domain.Selection) EstimateResult {
	total := BasePrice
	breakdown := []Line{{Label: "Prix de base", Amount: BasePrice}}

	if extra := sel.ScreenCount - FreeScreens; extra > 0 {
		cost := extra * PricePerExtraScreen
		total += cost
		breakdown = append(breakdown, Line{Label: fmt.Sprintf("%d écrans supplémentaires", extra), Amount: cost})
	}

	if mod, ok := findModifier(appTypes, string(sel.AppType)); ok && mod.Multiplier != 1 {
		if delta := int(math.Round((mod.Multiplier - 1) * float64(total))); delta != 0 {
			total += delta
			breakdown = append(breakdown, Line{Label: mod.Label, Amount: delta})
		}
	}

	add := func(opt Option, ok bool) {
		if ok && opt.Price > 0 {
			total += opt.Price
			breakdown = append(breakdown, Line{Label: opt.Label, Amount: opt.Price})
		}
	}
	add(findOption(authLevels, string(sel.AuthLevel)))
	add(findOption(payments, string(sel.PaymentNeeds)))
	for _, f := range sel.AdditionalFeatures {
		add(findOption(features, string(f)))
	}

	if style, ok := findOption(designStyles, string(sel.Design.Style)); ok && style.Price > 0 {
		total += style.Price
		breakdown = append(breakdown, Line{Label: "Design " + style.Label, Amount: style.Price})
	}

	variance := float64(total) * VariancePercent / 100
	return EstimateResult{
		Min:       int(math.Round(float64(total) - variance)),
		Max:       int(math.Round(float64(total) + variance)),
		Breakdown: breakdown,
	}
}

// QuoteResult is the admin-facing precise quote price.
type QuoteResult struct {
	Subtotal           int     `json:"subtotal"`
	Discount           float64 `json:"discount"`
	UrgencyMultiplier  float64 `json:"urgencyMultiplier"`
	Total              int     `json:"total"`
	MonthlyMaintenance int     `json:"monthlyMaintenance"`
	Breakdown          []Line  `json:"breakdown"`
}

// QuotePrice prices an admin quote selection: plan, packs in selection
// order, then extra screens in tier order. The discount applies to the
// subtotal and urgency multiplies what remains.
func QuotePrice(sel domain.QuoteSelection) QuoteResult {
	subtotal := 0
	breakdown := []Line{}

	if plan, ok := findOption(plans, string(sel.SelectedPlan)); ok {
		subtotal += plan.Price
		breakdown = append(breakdown, Line{Label: "Plan " + plan.Label, Amount: plan.Price})
	}

	for _, id := range sel.SelectedPacks {
		if pack, ok := findOption(packs, string(id)); ok {
			subtotal += pack.Price
			breakdown = append(breakdown, Line{Label: pack.Label, Amount: pack.Price})
		}
	}

	for _, tier := range domain.ScreenTiers {
		count := sel.ExtraScreens[tier]
		unit, ok := extraScreenPrices[tier]
		if !ok || count <= 0 {
			continue
		}
		cost := unit * count
		subtotal += cost
		breakdown = append(breakdown, Line{Label: fmt.Sprintf("%d écrans %s", count, tier), Amount: cost})
	}

	discount := float64(subtotal) * sel.Discount / 100

	multiplier := 1.0
	if u, ok := findModifier(urgencies, string(sel.Logistics.Urgency)); ok {
		multiplier = u.Multiplier
	}

	monthly := 0
	if m, ok := findOption(maintenances, string(sel.Logistics.Maintenance)); ok {
		monthly = m.Price
	}

	return QuoteResult{
		Subtotal:           subtotal,
		Discount:           discount,
		UrgencyMultiplier:  multiplier,
		Total:              int(math.Round((float64(subtotal) - discount) * multiplier)),
		MonthlyMaintenance: monthly,
		Breakdown:          breakdown,
	}
}

// Delivery estimate bounds, in weeks.
const (
	BaseDeliveryWeeks = 4
	MaxDeliveryWeeks  = 10
)

// DeliveryWeeks estimates the delivery time of a selection. Advisory only.
func DeliveryWeeks(sel domain.Selection) int {
	weeks := BaseDeliveryWeeks
	if sel.ScreenCount > 15 {
		weeks++
	}
	if sel.ScreenCount > 25 {
		weeks++
	}
	if sel.AuthLevel == domain.AuthMultiUser {
		weeks++
	}
	if sel.PaymentNeeds == domain.PaymentBoth {
		weeks++
	}
	if len(sel.AdditionalFeatures) > 3 {
		weeks++
	}
	if sel.Design.Style == domain.DesignPremium || sel.Design.Style == domain.DesignCustom {
		weeks++
	}
	return min(weeks, MaxDeliveryWeeks)
}

// DeliveryText renders a week count, e.g. "5 semaines".
func DeliveryText(weeks int) string {
	if weeks == 1 {
		return "1 semaine"
	}
	return fmt.Sprintf("%d semaines", weeks)
}

// PriceRangeText renders a band in French notation, e.g. "1 700 € - 2 300 €".
// A band with equal bounds renders as a single amount.
func PriceRangeText(minPrice, maxPrice int) string {
	if minPrice == maxPrice {
		return FormatEuros(minPrice)
	}
	return FormatEuros(minPrice) + " - " + FormatEuros(maxPrice)
}

// thousandsSep is the narrow no-break space French locales group digits with.
const thousandsSep = "\u202f"

// FormatEuros renders an amount with French digit grouping and a euro sign.
func FormatEuros(amount int) string {
	digits := strconv.Itoa(amount)
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteString(thousandsSep)
		}
		b.WriteRune(r)
	}
	b.WriteString(" €")
	return b.String()
}
