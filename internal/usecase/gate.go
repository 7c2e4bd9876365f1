package usecase

import (
	"context"

	"sessiongate/internal/domain/entity"
)

// GateOutcome is the result class of authenticating one request or handshake.
type GateOutcome int

const (
	// GateAnonymous means no token was presented.
	GateAnonymous GateOutcome = iota
	// GateUnverified means the token failed signature or expiry checks. Credentials are kept
	// so that an expired token can still be refreshed.
	GateUnverified
	// GateRejected means the token is well signed but its session is missing or not the caller's.
	GateRejected
	// GateAccepted means the session row is live.
	GateAccepted
)

var gateOutcomeNames = map[GateOutcome]string{
	GateAnonymous:  "anonymous",
	GateUnverified: "unverified",
	GateRejected:   "rejected",
	GateAccepted:   "accepted",
}

func (o GateOutcome) String() string {
	if name, ok := gateOutcomeNames[o]; ok {
		return name
	}

	return "unknown"
}

// GateResult is the decision for one request.
type GateResult struct {
	Outcome  GateOutcome
	Identity *entity.Principal
	// Err explains non-accepted outcomes with a domain error.
	Err error
	// ClearCredentials tells the caller to discard its stored tokens.
	ClearCredentials bool
}

// Gate authenticates an access token against the session store.
type Gate interface {
	Authenticate(ctx context.Context, accessToken string) GateResult

	// Confirm re-reads the principal's session row. Long-lived connections call it
	// once they are registered, so a revocation that landed after Authenticate is
	// not missed. It returns ErrSessionNotFound when the row is gone.
	Confirm(ctx context.Context, principal *entity.Principal) error
}
