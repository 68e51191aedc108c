package testutil

import (
	"net/http"

	id "alumnus/pkg/domain"
	"alumnus/pkg/requestcontext"
)

// WithAccountID authenticates req as accountID, the way the auth middleware
// does after validating a bearer token.
func WithAccountID(req *http.Request, accountID id.AccountID) *http.Request {
	return req.WithContext(requestcontext.WithAccountID(req.Context(), accountID))
}
