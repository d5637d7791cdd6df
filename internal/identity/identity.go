// Package identity computes display identities for actors and merges
// profile edits. It holds no state; the store owns the actor table.
package identity

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/apperr"
)

// AnonymousID is the id of the sentinel actor substituted for the author of
// anonymous reports. It is never stored as a real record.
const AnonymousID = "anonymous"

// DetailAnonymousImmutable is the validation detail returned for any attempt
// to edit the sentinel actor.
const DetailAnonymousImmutable = "ANONYMOUS_IMMUTABLE"

func errAnonymousImmutable() error {
	return apperr.Validation("the anonymous actor cannot be edited", DetailAnonymousImmutable)
}

// IsAnonymousImmutable reports whether err rejected an edit of the sentinel.
func IsAnonymousImmutable(err error) bool {
	var de *apperr.DomainError
	return errors.As(err, &de) && de.Code == apperr.CodeValidation && de.Details == DetailAnonymousImmutable
}

type User struct {
	ID             string `json:"id" yaml:"id"`
	DisplayName    string `json:"displayName" yaml:"name"`
	AvatarGlyph    string `json:"avatarGlyph" yaml:"avatar"`
	AvatarImageRef string `json:"avatarImageRef,omitempty" yaml:"avatarImage,omitempty"`
	Location       string `json:"location" yaml:"location"`
	Verified       bool   `json:"verified" yaml:"verified"`
}

// IsAnonymous reports whether u is the sentinel actor.
func (u User) IsAnonymous() bool {
	return u.ID == AnonymousID
}

// Anonymous returns the sentinel actor. It is a fresh value on every call so
// callers cannot mutate a shared copy.
func Anonymous() User {
	return User{
		ID:          AnonymousID,
		DisplayName: "Anonymous",
		AvatarGlyph: "?",
		Location:    "Hidden",
	}
}

// Project returns the identity to render for an issue author. Anonymous
// reports always render the sentinel, whatever the real author looks like.
func Project(author User, anonymous bool) User {
	if anonymous {
		return Anonymous()
	}
	return author
}

// Patch lists profile fields to change. Nil fields are left alone. The id is
// not patchable.
type Patch struct {
	DisplayName    *string `json:"displayName,omitempty"`
	AvatarGlyph    *string `json:"avatarGlyph,omitempty"`
	AvatarImageRef *string `json:"avatarImageRef,omitempty"`
	Location       *string `json:"location,omitempty"`
	Verified       *bool   `json:"verified,omitempty"`
}

func (p Patch) Empty() bool {
	return p.DisplayName == nil && p.AvatarGlyph == nil && p.AvatarImageRef == nil &&
		p.Location == nil && p.Verified == nil
}

// ApplyIdentityEdit returns current with patch merged in. It only computes
// the new value; fanning it out to issues and comments is the store's job.
func ApplyIdentityEdit(current User, patch Patch) (User, error) {
	if current.IsAnonymous() {
		return current, errAnonymousImmutable()
	}

	next := current
	if patch.DisplayName != nil {
		name := strings.TrimSpace(*patch.DisplayName)
		if name == "" {
			return current, apperr.Validation("display name is required", "displayName")
		}
		next.DisplayName = name
	}
	if patch.Location != nil {
		location := strings.TrimSpace(*patch.Location)
		if location == "" {
			return current, apperr.Validation("location is required", "location")
		}
		next.Location = location
	}
	if patch.AvatarGlyph != nil {
		glyph, ok := NormalizeGlyph(*patch.AvatarGlyph)
		if !ok {
			return current, apperr.Validation("avatar glyph is required", "avatarGlyph")
		}
		next.AvatarGlyph = glyph
	}
	if patch.AvatarImageRef != nil {
		next.AvatarImageRef = strings.TrimSpace(*patch.AvatarImageRef)
	}
	if patch.Verified != nil {
		next.Verified = *patch.Verified
	}
	return next, nil
}

// NormalizeGlyph upper-cases the first rune of s. ok is false when s is blank.
func NormalizeGlyph(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)), true
}

// GlyphFor derives a fallback avatar glyph from a display name.
func GlyphFor(displayName string) string {
	if glyph, ok := NormalizeGlyph(displayName); ok {
		return glyph
	}
	return "?"
}
