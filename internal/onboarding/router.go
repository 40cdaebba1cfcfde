package onboarding

// Route is a navigation target. RouteNone means no decision can be made yet.
type Route string

const (
	RouteNone      Route = ""
	RouteIdentity  Route = "/onboarding/identity"
	RouteTrialHome Route = "/home"
	RoutePlans     Route = "/plans"
	RouteTutorial  Route = "/tutorial"
	RouteAppHome   Route = "/app"
)

// Decide maps a status to the screen the user must see next. The checks run
// in a fixed order: nickname, trial, subscription, tutorial. A nil status
// yields RouteNone.
func Decide(status *Status) Route {
	switch {
	case status == nil:
		return RouteNone
	case !status.NicknameDefined || status.OnboardingStage == StageNicknameRequired:
		return RouteIdentity
	case status.OnboardingStage == StageTrialActive:
		return RouteTrialHome
	case !status.SubscriptionActive:
		return RoutePlans
	case !status.TutorialCompleted:
		return RouteTutorial
	default:
		return RouteAppHome
	}
}
