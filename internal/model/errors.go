package model

import "errors"

// IsNotFound reports whether err means the addressed entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrPostNotFound) ||
		errors.Is(err, ErrCommentNotFound)
}

// IsForbidden reports whether err is an ownership failure.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrNotPostOwner) || errors.Is(err, ErrNotCommentOwner)
}

// IsBadRequest reports whether err is caused by invalid input.
func IsBadRequest(err error) bool {
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var badRequest = []error{
	ErrNameRequired, ErrNameTooLong, ErrBioTooLong, ErrEmailRequired, ErrEmailInvalid, ErrPasswordTooShort,
	ErrPostContentRequired, ErrPostTooLong,
	ErrContentRequired, ErrContentTooLong, ErrNestedReply, ErrNotAReply, ErrIsAReply,
	ErrCannotFollowSelf, ErrInvalidCursor,
}

// IsConflict reports whether err is a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrEmailExists)
}
