package service

import (
	"context"
	"strings"

	"alumnus/internal/agerules"
	consentmodels "alumnus/internal/consent/models"
	"alumnus/internal/onboarding/models"
	"alumnus/internal/profile"
	profilemodels "alumnus/internal/profile/models"
	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
)

// GrantConsent records parental consent for a child profile of the account.
// The profile update and the ledger entry commit together. Granting while a
// consent is still valid returns the current expiry and records nothing.
func (s *Service) GrantConsent(ctx context.Context, parentAccountID id.AccountID, childProfileID id.ProfileID) (result *models.GrantConsentResult, err error) {
	ctx, span := s.startSpan(ctx, "GrantConsent", parentAccountID)
	defer func() { endSpan(span, err) }()

	var recorded bool
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		child, err := profile.ResolveOwnedChild(txCtx, s.profiles, parentAccountID, childProfileID)
		if err != nil {
			return err
		}
		if err := child.CanGrantConsent(); err != nil {
			return consentStateError(child)
		}

		ts := now(txCtx)
		if child.HasValidConsent(ts) && child.AccessLevel == agerules.AccessSupervised {
			result = &models.GrantConsentResult{ExpiresAt: *child.ConsentExpiresAt}
			return nil
		}

		expiresAt := child.ApplyConsentGrant(ts)
		if err := s.profiles.Update(txCtx, child); err != nil {
			return dErrors.Translate(err, "failed to update profile")
		}
		if _, err := s.ledger.Append(txCtx, consentmodels.ActionGranted, child.ID, child.ParentProfileID, parentAccountID, ""); err != nil {
			return err
		}
		recorded = true
		result = &models.GrantConsentResult{ExpiresAt: expiresAt}
		return nil
	})
	if err != nil {
		return nil, dErrors.Translate(err, "failed to grant consent")
	}

	if recorded {
		s.metrics.IncrementConsentEvent(consentmodels.ActionGranted.String())
		s.logAudit(ctx, "consent_granted",
			"account_id", parentAccountID.String(),
			"child_profile_id", childProfileID.String(),
			"expires_at", result.ExpiresAt,
		)
	}
	return result, nil
}

// RevokeConsent withdraws parental consent, returning the child profile to
// pending consent. Revoking when no consent is given records nothing.
func (s *Service) RevokeConsent(ctx context.Context, parentAccountID id.AccountID, childProfileID id.ProfileID, reason string) (err error) {
	ctx, span := s.startSpan(ctx, "RevokeConsent", parentAccountID)
	defer func() { endSpan(span, err) }()

	reason = strings.TrimSpace(reason)
	if err := consentmodels.ValidateReason(reason); err != nil {
		return err
	}

	var recorded bool
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		child, err := profile.ResolveOwnedChild(txCtx, s.profiles, parentAccountID, childProfileID)
		if err != nil {
			return err
		}
		if err := child.CanRevokeConsent(); err != nil {
			return consentStateError(child)
		}
		if !child.ParentConsentGiven {
			return nil
		}

		child.ApplyConsentRevocation(now(txCtx))
		if err := s.profiles.Update(txCtx, child); err != nil {
			return dErrors.Translate(err, "failed to update profile")
		}
		if _, err := s.ledger.Append(txCtx, consentmodels.ActionRevoked, child.ID, child.ParentProfileID, parentAccountID, reason); err != nil {
			return err
		}
		recorded = true
		return nil
	})
	if err != nil {
		return dErrors.Translate(err, "failed to revoke consent")
	}

	if recorded {
		s.metrics.IncrementConsentEvent(consentmodels.ActionRevoked.String())
		s.logAudit(ctx, "consent_revoked",
			"account_id", parentAccountID.String(),
			"child_profile_id", childProfileID.String(),
		)
	}
	return nil
}

// ConsentHistory returns the ledger for a child profile of the account,
// oldest first.
func (s *Service) ConsentHistory(ctx context.Context, accountID id.AccountID, childProfileID id.ProfileID) (records []*consentmodels.Record, err error) {
	ctx, span := s.startSpan(ctx, "ConsentHistory", accountID)
	defer func() { endSpan(span, err) }()

	child, err := profile.ResolveOwnedChild(ctx, s.profiles, accountID, childProfileID)
	if err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, child.ID)
}

// consentStateError explains why consent does not apply to a child profile.
func consentStateError(child *profilemodels.Profile) error {
	if child.IsSuspended() {
		return dErrors.New(dErrors.CodeAccessDenied, "profile is suspended")
	}
	return dErrors.New(dErrors.CodeValidation, "profile does not require parental consent")
}
