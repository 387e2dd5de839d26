package models

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

var isrcPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{3}\d{2}\d{5}$`)

var maxPercent = decimal.NewFromInt(100)

// ValidationError is returned when a record would violate a write-time
// invariant. Field names match the JSON payload.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func ValidateISRC(value string) error {
	if !isrcPattern.MatchString(value) {
		return &ValidationError{Field: "isrc", Message: fmt.Sprintf("%s is not a valid ISRC code", value)}
	}
	return nil
}

// Printable reports whether s can be drawn with the PDF core fonts, which
// only cover the WinAnsi character set.
func Printable(s string) bool {
	_, err := charmap.Windows1252.NewEncoder().String(s)
	return err == nil
}

func ValidatePrintable(field, value string) error {
	if !Printable(value) {
		return &ValidationError{Field: field, Message: "contains characters that cannot be printed on signature documents"}
	}
	return nil
}

// ValidatePercent checks a single share: two decimal places, within [0, 100].
func ValidatePercent(field string, p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(maxPercent) {
		return &ValidationError{Field: field, Message: "percent must be between 0 and 100"}
	}
	if !p.Round(2).Equal(p) {
		return &ValidationError{Field: field, Message: "percent allows at most two decimal places"}
	}
	return nil
}

// ValidateSplitTotals enforces that master and publishing shares each sum to
// at most 100 for one split sheet.
func ValidateSplitTotals(master []MasterSplit, publishing []PublishingSplit) error {
	total := decimal.Zero
	for i, s := range master {
		if err := ValidatePercent(fmt.Sprintf("master_splits[%d].percent", i), s.Percent); err != nil {
			return err
		}
		total = total.Add(s.Percent)
	}
	if total.GreaterThan(maxPercent) {
		return &ValidationError{Field: "master_splits", Message: "the total percent for all master splits cannot exceed 100.00"}
	}

	total = decimal.Zero
	for i, s := range publishing {
		if err := ValidatePercent(fmt.Sprintf("publishing_splits[%d].percent", i), s.Percent); err != nil {
			return err
		}
		total = total.Add(s.Percent)
	}
	if total.GreaterThan(maxPercent) {
		return &ValidationError{Field: "publishing_splits", Message: "the total percent for all publishing splits cannot exceed 100.00"}
	}
	return nil
}

func ValidMasterRole(r MasterRole) bool {
	switch r {
	case MasterRoleArtist, MasterRoleProducer, MasterRoleLabel, MasterRoleOther:
		return true
	}
	return false
}

func ValidPublishingRole(r PublishingRole) bool {
	switch r {
	case PublishingRoleSongwriter, PublishingRoleComposer, PublishingRoleProducer,
		PublishingRoleLyricist, PublishingRoleRemixer, PublishingRoleOther:
		return true
	}
	return false
}
