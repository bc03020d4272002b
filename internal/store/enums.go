package store

// Campaign ENUMs
const (
	CampaignModeDonation = "donation"
	CampaignModeReward   = "reward"
)

const (
	CampaignStatusDraft     = "draft"
	CampaignStatusPending   = "pending"
	CampaignStatusDeclined  = "declined"
	CampaignStatusPublished = "published"
	CampaignStatusCompleted = "completed"
)

const (
	GoalTypeRaisedAmount      = "raised-amount"
	GoalTypeContributionCount = "number-of-contributions"
	GoalTypeContributorCount  = "number-of-contributors"
	GoalTypeNone              = "none"
)

// Contribution ENUMs
const (
	ContributionKindDonation = "donation"
	ContributionKindPledge   = "pledge"
)

const (
	ContributionStatusPending    = "pending"
	ContributionStatusInProgress = "in-progress"
	ContributionStatusBacked     = "backed"
	ContributionStatusCompleted  = "completed"
	ContributionStatusCancelled  = "cancelled"
	ContributionStatusFailed     = "failed"
)

const (
	PaymentStatusUnpaid            = "unpaid"
	PaymentStatusPending           = "pending"
	PaymentStatusPaid              = "paid"
	PaymentStatusPartiallyRefunded = "partially-refunded"
	PaymentStatusRefunded          = "refunded"
)

// Activity types
const (
	ActivityDonationCompleted             = "donation.completed"
	ActivityDonationFailed                = "donation.failed"
	ActivityDonationCancelled             = "donation.cancelled"
	ActivityDonationRefunded              = "donation.refunded"
	ActivityDonationPartiallyRefunded     = "donation.partially_refunded"
	ActivityPledgeInProgress              = "pledge.in_progress"
	ActivityPledgeBacked                  = "pledge.backed"
	ActivityPledgeCompleted               = "pledge.completed"
	ActivityPledgeFailed                  = "pledge.failed"
	ActivityPledgeCancelled               = "pledge.cancelled"
	ActivityPledgeRefunded                = "pledge.refunded"
	ActivityPledgePartiallyRefunded       = "pledge.partially_refunded"
	ActivityPledgePaymentRetried          = "pledge.payment_retried"
	ActivityCampaignApprovedAndPublished  = "campaign.approved_and_published"
	ActivityCampaignSubmittedForReview    = "campaign.submitted_for_review"
	ActivityCampaignResubmittedForReview  = "campaign.resubmitted_for_review"
	ActivityCampaignDeclined              = "campaign.declined"
	ActivityCampaignCompleted             = "campaign.completed"
	ActivityCampaignSetDeadline           = "campaign.set_deadline"
	ActivityCampaignRemovedDeadline       = "campaign.removed_deadline"
	ActivityCampaignExtendedDeadline      = "campaign.extended_deadline"
	ActivityCampaignHalfMilestoneReached  = "campaign.half_milestone_reached"
	ActivityCampaignGoalReached           = "campaign.goal_reached"
	ActivityCampaignEnded                 = "campaign.ended"
)
