// Package onboarding holds the onboarding status snapshot, the coalescing
// store that refreshes it, and the routing decision derived from it.
package onboarding

// Stage is the backend-reported position in the onboarding funnel. Values
// other than the constants below are carried verbatim.
type Stage string

const (
	StageNicknameRequired Stage = "NICKNAME_REQUIRED"
	StageTrialActive      Stage = "TRIAL_ACTIVE"
	StageReady            Stage = "READY"
)

// Status is the backend's onboarding status document. A refresh replaces it
// wholesale; it is never mutated in place.
type Status struct {
	DialogueNickname   *string `json:"dialogueNickname"`
	NicknameDefined    bool    `json:"nicknameDefined"`
	OnboardingStage    Stage   `json:"onboardingStage"`
	SubscriptionActive bool    `json:"subscriptionActive"`
	TutorialCompleted  bool    `json:"tutorialCompleted"`
	CreditsBalance     float64 `json:"creditsBalance"`
}
