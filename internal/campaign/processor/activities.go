package processor

import (
	"time"

	"crowdfund-server/internal/store"
)

// ValidStatusChange reports whether a moderation move is allowed. Completed
// is terminal; everything else may move freely so a moderator can approve,
// decline or unpublish without walking intermediate states.
func ValidStatusChange(from, to string) bool {
	if from == to {
		return true
	}
	return from != store.CampaignStatusCompleted
}

// DeriveStatusActivity maps a campaign status change to its activity type,
// independent of whether the change is allowed. Returns empty when the
// change derives no activity; that is a legitimate outcome, not an error.
// Entering published from any other state is an approval; entering pending
// from declined is a resubmission, from anywhere else a first submission.
func DeriveStatusActivity(from, to string) string {
	if from == to {
		return ""
	}
	switch to {
	case store.CampaignStatusPublished:
		return store.ActivityCampaignApprovedAndPublished
	case store.CampaignStatusPending:
		if from == store.CampaignStatusDeclined {
			return store.ActivityCampaignResubmittedForReview
		}
		return store.ActivityCampaignSubmittedForReview
	case store.CampaignStatusDeclined:
		return store.ActivityCampaignDeclined
	case store.CampaignStatusCompleted:
		return store.ActivityCampaignCompleted
	}
	return ""
}

// DeriveDeadlineActivity maps a deadline change to its activity type and
// payload. Shortening a deadline derives nothing: backers are only notified
// of changes that give them more time or remove the limit.
func DeriveDeadlineActivity(oldDeadline, newDeadline *time.Time) (string, store.JSONB) {
	switch {
	case oldDeadline == nil && newDeadline != nil:
		return store.ActivityCampaignSetDeadline, store.JSONB{
			"end_date": newDeadline.UTC().Format(time.RFC3339),
		}
	case oldDeadline != nil && newDeadline == nil:
		return store.ActivityCampaignRemovedDeadline, nil
	case oldDeadline != nil && newDeadline != nil && newDeadline.After(*oldDeadline):
		days := int(newDeadline.Sub(*oldDeadline).Hours() / 24)
		return store.ActivityCampaignExtendedDeadline, store.JSONB{
			"end_date":      newDeadline.UTC().Format(time.RFC3339),
			"extended_days": days,
		}
	}
	return "", nil
}
