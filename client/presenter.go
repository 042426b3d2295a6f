package client

import "github.com/tabletap/tabletap/models"

// UnpaidGroupKey collects records with no verification code. It
// contains the letter I, which the code alphabet excludes, so no
// generated code can ever collide with it.
const UnpaidGroupKey = "UNPAID"

// GroupByVerificationCode buckets orders by shared settlement code for
// the staff-facing verification view. Records without a code (pay-later
// lines) all land under UnpaidGroupKey.
func GroupByVerificationCode(orders []models.OrderRecord) map[string][]models.OrderRecord {
	groups := make(map[string][]models.OrderRecord)
	for _, order := range orders {
		key := UnpaidGroupKey
		if order.VerificationCode != nil && *order.VerificationCode != "" {
			key = *order.VerificationCode
		}
		groups[key] = append(groups[key], order)
	}
	return groups
}
