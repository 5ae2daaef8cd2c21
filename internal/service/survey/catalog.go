package survey

import "github.com/Maristella28/Bms-111725-sub004/internal/domain"

// questionCatalog is the static question set per survey type. The set is
// copied into each instance at issue time, so later catalog edits never
// retroactively change in-flight surveys.
var questionCatalog = map[domain.SurveyType][]domain.Question{
	domain.SurveyComprehensive: {
		{Key: "members_count", Prompt: "How many people currently live in your household?", Required: true},
		{Key: "members_changed", Prompt: "Has household membership changed since the last survey (births, deaths, move-ins, move-outs)?", Required: true},
		{Key: "address_current", Prompt: "Is your registered address still correct?", Required: true},
		{Key: "contact_current", Prompt: "Are your registered phone number and email still correct?", Required: true},
		{Key: "employment_status", Prompt: "What is the employment status of the household head?", Required: false},
		{Key: "remarks", Prompt: "Any other updates the barangay should know about?", Required: false},
	},
	domain.SurveyRelocation: {
		{Key: "still_resident", Prompt: "Does your household still reside at the registered address?", Required: true},
		{Key: "new_address", Prompt: "If you have moved, what is your new address?", Required: false},
		{Key: "move_date", Prompt: "When did or will the move take place?", Required: false},
	},
	domain.SurveyDeceased: {
		{Key: "deceased_report", Prompt: "Has any registered household member passed away?", Required: true},
		{Key: "deceased_name", Prompt: "If yes, please provide the member's full name.", Required: false},
		{Key: "deceased_date", Prompt: "Date of passing, if known.", Required: false},
	},
	domain.SurveyContact: {
		{Key: "phone_current", Prompt: "Is your registered mobile number still in use?", Required: true},
		{Key: "email_current", Prompt: "Is your registered email address still in use?", Required: true},
		{Key: "new_contact", Prompt: "If either has changed, what should we update it to?", Required: false},
	},
	domain.SurveyQuick: {
		{Key: "all_current", Prompt: "Is all your registered household information still accurate?", Required: true},
	},
}

// QuestionSet returns a copy of the catalog entry for the given type.
func QuestionSet(t domain.SurveyType) []domain.Question {
	src := questionCatalog[t]
	out := make([]domain.Question, len(src))
	copy(out, src)
	return out
}
