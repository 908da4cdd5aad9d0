package workflow

import (
	"github.com/xkilldash9x/signup-cli/api/schemas"
)

// State is a position in the signup state machine.
type State string

const (
	StateInit                 State = "Init"
	StateConsentPhase         State = "ConsentPhase"
	StateIdentityPhase        State = "IdentityPhase"
	StateOrgPhase             State = "OrgPhase"
	StateEditionSelect        State = "EditionSelect"
	StateCloudProviderSelect  State = "CloudProviderSelect"
	StateTermsAndSubmit       State = "TermsAndSubmit"
	StateCaptchaWait          State = "CaptchaWait"
	StatePostCaptcha          State = "PostCaptcha"
	StateCompletionPoll       State = "CompletionPoll"
	StateTeardownVisible      State = "TeardownVisible"
	StateHeadlessContinuation State = "HeadlessContinuation"
	StateDone                 State = "Done"
)

// States lists every state in execution order.
var States = []State{
	StateInit, StateConsentPhase, StateIdentityPhase, StateOrgPhase, StateEditionSelect,
	StateCloudProviderSelect, StateTermsAndSubmit, StateCaptchaWait, StatePostCaptcha,
	StateCompletionPoll, StateTeardownVisible, StateHeadlessContinuation, StateDone,
}

// Action is what a step does to its target.
type Action string

const (
	ActionClick  Action = "click"
	ActionFill   Action = "fill"
	ActionCheck  Action = "check"
	ActionSelect Action = "select"
)

// Step is one named interaction with the page.
type Step struct {
	Name   string
	State  State
	Action Action
	Target schemas.UITarget
	Value  string
}

// UI targets of the signup form.
var (
	TargetRejectCookies   = schemas.RoleTarget("reject_cookies", "button", "Reject All")
	TargetSignupReason    = schemas.TestIDTarget("signup_reason", "signupReason-input")
	TargetReasonOption    = schemas.UITarget{ID: "signup_reason_option", Kind: schemas.TargetRole, Role: "option", Name: "Personal learning and", Prefix: true}
	TargetOptOut          = schemas.RoleTarget("opt_out", "checkbox", "opt-out-agreement")
	TargetFirstName       = schemas.TestIDTarget("first_name", "firstName-input")
	TargetLastName        = schemas.TestIDTarget("last_name", "lastName-input")
	TargetEmail           = schemas.TestIDTarget("email", "email-input")
	TargetContinue        = schemas.RoleTarget("continue", "button", "Continue")
	TargetCompany         = schemas.TestIDTarget("company", "companyName-input")
	TargetJobTitle        = schemas.TestIDTarget("job_title", "jobTitle-input")
	TargetEditionSelector = schemas.TestIDTarget("edition_selector", "edition-input")
	TargetTerms           = schemas.RoleTarget("terms", "checkbox", "terms-agreement")
	TargetGetStarted      = schemas.RoleTarget("get_started", "button", "Get started")
	TargetSkip            = schemas.RoleTarget("skip", "link", "Skip")
	TargetInbox           = schemas.TextTarget("inbox", "Check your inbox!")
)

// editionLabels are the option texts of the edition selector. Business
// Critical and Enterprise share one option whose text runs both names together.
var editionLabels = map[schemas.Edition]string{
	schemas.EditionBusinessCritical: "Business CriticalEnterprise",
	schemas.EditionEnterprise:       "Enterprise",
	schemas.EditionStandard:         "Standard",
}

// EditionTarget returns the option for e. Unknown editions get the Business
// Critical option and ok is false.
func EditionTarget(e schemas.Edition) (target schemas.UITarget, ok bool) {
	label, ok := editionLabels[e]
	if !ok {
		label = editionLabels[schemas.EditionBusinessCritical]
	}
	return schemas.TextTarget("edition_option", label), ok
}

// CloudProviderTarget is the button labelled with the provider's display name.
func CloudProviderTarget(c schemas.CloudProvider) schemas.UITarget {
	return schemas.RoleTarget("cloud_provider", "button", c.DisplayName())
}

// Plan returns every interaction of a run in order. Only the edition option
// depends on the record; fallback reports that its edition was not recognised.
func Plan(record schemas.SignupRecord) (steps []Step, fallback bool) {
	record = record.WithDefaults()
	edition, known := EditionTarget(record.Edition)

	steps = []Step{
		{Name: "dismiss cookie prompt", State: StateConsentPhase, Action: ActionClick, Target: TargetRejectCookies},
		{Name: "open signup reason", State: StateConsentPhase, Action: ActionClick, Target: TargetSignupReason},
		{Name: "choose signup reason", State: StateConsentPhase, Action: ActionSelect, Target: TargetReasonOption},
		{Name: "accept opt-out", State: StateConsentPhase, Action: ActionCheck, Target: TargetOptOut},

		{Name: "fill first name", State: StateIdentityPhase, Action: ActionFill, Target: TargetFirstName, Value: record.FirstName},
		{Name: "fill last name", State: StateIdentityPhase, Action: ActionFill, Target: TargetLastName, Value: record.LastName},
		{Name: "fill email", State: StateIdentityPhase, Action: ActionFill, Target: TargetEmail, Value: record.Email},
		{Name: "continue", State: StateIdentityPhase, Action: ActionClick, Target: TargetContinue},

		{Name: "fill company", State: StateOrgPhase, Action: ActionFill, Target: TargetCompany, Value: record.Company},
		{Name: "fill job title", State: StateOrgPhase, Action: ActionFill, Target: TargetJobTitle, Value: record.JobTitle},

		{Name: "open edition selector", State: StateEditionSelect, Action: ActionClick, Target: TargetEditionSelector},
		{Name: "choose edition", State: StateEditionSelect, Action: ActionSelect, Target: edition},

		{Name: "choose cloud provider", State: StateCloudProviderSelect, Action: ActionClick, Target: CloudProviderTarget(record.CloudProvider)},

		{Name: "accept terms", State: StateTermsAndSubmit, Action: ActionCheck, Target: TargetTerms},
		{Name: "get started", State: StateTermsAndSubmit, Action: ActionClick, Target: TargetGetStarted},

		{Name: "skip first prompt", State: StatePostCaptcha, Action: ActionClick, Target: TargetSkip},
		{Name: "skip second prompt", State: StatePostCaptcha, Action: ActionClick, Target: TargetSkip},
	}
	return steps, !known
}

// stepsIn filters steps down to one state, keeping their order.
func stepsIn(steps []Step, state State) []Step {
	var out []Step
	for _, s := range steps {
		if s.State == state {
			out = append(out, s)
		}
	}
	return out
}
