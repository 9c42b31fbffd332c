package app

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pscheid92/blastdesk/internal/domain"
	apperrors "github.com/pscheid92/blastdesk/internal/platform/errors"
)

const (
	maxDepartmentName  = 100
	maxDescription     = 500
	maxParticipantName = 200
	maxRole            = 100
	maxTemplateName    = 200
	maxSubject         = 300
	maxBody            = 200_000
	maxBlastName       = 200
	minPasswordLength  = 8
	maxFontSize        = 400
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func requireLength(field, value string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(value)
	switch {
	case n < minLen && minLen == 1:
		return apperrors.ValidationError(field + " is required").WithField("field", field)
	case n < minLen:
		return apperrors.ValidationError(field + " is too short").WithField("field", field).WithField("min", minLen)
	case n > maxLen:
		return apperrors.ValidationError(field + " is too long").WithField("field", field).WithField("max", maxLen)
	}
	return nil
}

// normalizeEmail lowercases and validates a bare address.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperrors.ValidationError("email is required").WithField("field", "email")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperrors.ValidationError("email is invalid").WithField("field", "email")
	}
	return email, nil
}

func validateDepartment(in *domain.DepartmentInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := requireLength("name", in.Name, 1, maxDepartmentName); err != nil {
		return err
	}
	return requireLength("description", in.Description, 0, maxDescription)
}

func validateParticipant(in *domain.ParticipantInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Role = strings.TrimSpace(in.Role)
	if err := requireLength("name", in.Name, 1, maxParticipantName); err != nil {
		return err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return err
	}
	in.Email = email
	return requireLength("role", in.Role, 0, maxRole)
}

func validateTemplate(in *domain.TemplateInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Subject = strings.TrimSpace(in.Subject)
	if err := requireLength("name", in.Name, 1, maxTemplateName); err != nil {
		return err
	}
	if err := requireLength("subject", in.Subject, 1, maxSubject); err != nil {
		return err
	}
	return requireLength("body_html", in.BodyHTML, 0, maxBody)
}

func validatePlacement(field string, p *domain.TextPlacement) error {
	align, ok := domain.ParseAlign(string(p.Align))
	if !ok {
		return apperrors.ValidationError(field + ".align must be left, center or right").WithField("field", field)
	}
	p.Align = align
	if p.FontSize < 1 || p.FontSize > maxFontSize {
		return apperrors.ValidationError(field+".font_size out of range").WithField("field", field).WithField("max", maxFontSize)
	}
	if p.X < 0 || p.Y < 0 {
		return apperrors.ValidationError(field + " coordinates must not be negative").WithField("field", field)
	}
	if !hexColor.MatchString(p.Color) {
		return apperrors.ValidationError(field + ".color must be #RRGGBB").WithField("field", field)
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return apperrors.ValidationError("password is too short").WithField("field", "password").WithField("min", minPasswordLength)
	}
	// bcrypt ignores everything past 72 bytes.
	if len(password) > 72 {
		return apperrors.ValidationError("password is too long").WithField("field", "password").WithField("max", 72)
	}
	return nil
}
