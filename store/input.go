package store

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/acrylic/rights/models"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// SplitInput is one master or publishing share as submitted by a client. An
// empty UUID means the split is new.
type SplitInput struct {
	UUID    string          `json:"uuid" validate:"omitempty,uuid"`
	Name    string          `json:"name" validate:"required,max=250,pdftext"`
	Email   string          `json:"email" validate:"required,email,max=254"`
	Percent decimal.Decimal `json:"percent"`
	Role    string          `json:"role" validate:"max=20"`
	PROName string          `json:"pro_name" validate:"max=200,pdftext"`
	IPI     *uint64         `json:"ipi"`
}

type SplitSheetInput struct {
	Track            string       `json:"track" validate:"omitempty,uuid"`
	ISRC             string       `json:"isrc"`
	TrackName        string       `json:"track_name" validate:"max=150,pdftext"`
	TrackCoverImage  string       `json:"track_cover_image" validate:"omitempty,url"`
	MasterSplits     []SplitInput `json:"master_splits"`
	PublishingSplits []SplitInput `json:"publishing_splits"`
}

// SplitSheetPatch updates a split sheet. A nil list leaves that split type
// untouched; a present list is the complete desired set.
type SplitSheetPatch struct {
	TrackName        *string       `json:"track_name" validate:"omitempty,max=150,pdftext"`
	TrackCoverImage  *string       `json:"track_cover_image" validate:"omitempty,url"`
	MasterSplits     *[]SplitInput `json:"master_splits"`
	PublishingSplits *[]SplitInput `json:"publishing_splits"`
}

type TrackInput struct {
	ISRC string `json:"isrc"`
	Name string `json:"title" validate:"max=250,pdftext"`
}

type OnboardInput struct {
	Email      string `json:"email" validate:"required,email,max=254"`
	FirstName  string `json:"first_name" validate:"max=150,pdftext"`
	LastName   string `json:"last_name" validate:"max=150,pdftext"`
	ArtistName string `json:"artist_name" validate:"required,max=250,pdftext"`
	SpotifyURL string `json:"spotify_url" validate:"omitempty,url"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Names end up on the signature documents.
	_ = v.RegisterValidation("pdftext", func(fl validator.FieldLevel) bool {
		return models.Printable(fl.Field().String())
	})
	return v
}

// validateStruct runs tag validation and reports the first failure as a
// ValidationError, with field names prefixed by prefix.
func validateStruct(prefix string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	fe := errs[0]
	field := fe.Field()
	if prefix != "" {
		field = prefix + "." + field
	}
	return &models.ValidationError{Field: field, Message: tagMessage(fe)}
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "enter a valid email address"
	case "url":
		return "enter a valid URL"
	case "uuid":
		return "must be a valid UUID"
	case "max":
		return fmt.Sprintf("ensure this field has no more than %s characters", fe.Param())
	case "pdftext":
		return "contains characters that cannot be printed on signature documents"
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}

// validateSplits checks each submitted split, percent included, before
// anything is written. Column rounding must never decide what is accepted.
func validateSplits(field string, in []SplitInput) error {
	for i := range in {
		prefix := fmt.Sprintf("%s[%d]", field, i)
		if err := validateStruct(prefix, in[i]); err != nil {
			return err
		}
		if err := models.ValidatePercent(prefix+".percent", in[i].Percent); err != nil {
			return err
		}
	}
	return nil
}

func masterRole(field, role string) (models.MasterRole, error) {
	if role == "" {
		return models.MasterRoleArtist, nil
	}
	r := models.MasterRole(role)
	if !models.ValidMasterRole(r) {
		return "", &models.ValidationError{Field: field, Message: fmt.Sprintf("%q is not a valid choice", role)}
	}
	return r, nil
}

func publishingRole(field, role string) (models.PublishingRole, error) {
	if role == "" {
		return models.PublishingRoleSongwriter, nil
	}
	r := models.PublishingRole(role)
	if !models.ValidPublishingRole(r) {
		return "", &models.ValidationError{Field: field, Message: fmt.Sprintf("%q is not a valid choice", role)}
	}
	return r, nil
}

func (in SplitInput) split() models.Split {
	return models.Split{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Percent: in.Percent,
	}
}
