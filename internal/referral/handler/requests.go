package handler

import (
	id "refhub/pkg/domain"
	dErrors "refhub/pkg/domain-errors"
)

// ArrivalRequest is the HTTP request body for POST /events/arrival. It
// describes a user arriving through the bot's start flow, optionally carrying
// the inviter encoded in their deep link.
type ArrivalRequest struct {
	UserID    int64  `json:"user_id"`
	InviterID *int64 `json:"inviter_id,omitempty"`

	// Parsed values (populated by Validate)
	parsedUserID    id.UserID
	parsedInviterID id.UserID
}

// Validate validates and parses the request.
// Implements the Validator interface for httputil.DecodeAndPrepare.
func (r *ArrivalRequest) Validate() error {
	if r.UserID <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "user_id must be a positive integer")
	}
	r.parsedUserID = id.UserID(r.UserID)

	if r.InviterID != nil {
		if *r.InviterID <= 0 {
			return dErrors.New(dErrors.CodeInvalidInput, "inviter_id must be a positive integer")
		}
		r.parsedInviterID = id.UserID(*r.InviterID)
	}
	return nil
}

// ParsedUserID returns the validated arriving user ID.
func (r *ArrivalRequest) ParsedUserID() id.UserID {
	return r.parsedUserID
}

// ParsedInviterID returns the validated inviter ID, zero when the arrival
// carried no referral payload.
func (r *ArrivalRequest) ParsedInviterID() id.UserID {
	return r.parsedInviterID
}
