package wizard

import "fmt"

// OccasionKind selects which recipient options are offered.
type OccasionKind string

const (
	OccasionPersonal  OccasionKind = "personal"
	OccasionCorporate OccasionKind = "corporate"
	OccasionSurprise  OccasionKind = "surprise"
)

// RecipientCustom is the recipient id that requires free custom text.
const RecipientCustom = "custom"

type Occasion struct {
	ID     string       `json:"id"`
	Label  string       `json:"label"`
	Kind   OccasionKind `json:"kind"`
	Prompt string       `json:"prompt"`
}

type Recipient struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

var occasions = []Occasion{
	{ID: "birthday", Label: "Birthday", Kind: OccasionPersonal, Prompt: "I'm looking for a birthday gift"},
	{ID: "thank_you", Label: "Thank You", Kind: OccasionPersonal, Prompt: "I want to send a thank you gift"},
	{ID: "anniversary", Label: "Anniversary", Kind: OccasionPersonal, Prompt: "I need an anniversary gift"},
	{ID: "corporate", Label: "Corporate", Kind: OccasionCorporate, Prompt: "I'm looking for a corporate gift"},
	{ID: "surprise", Label: "Surprise", Kind: OccasionSurprise, Prompt: "Surprise me with gift ideas"},
}

var personalRecipients = []Recipient{
	{ID: "spouse", Label: "Spouse"},
	{ID: "parents", Label: "Parents"},
	{ID: "siblings", Label: "Siblings"},
	{ID: "friends", Label: "Friends"},
}

var corporateRecipients = []Recipient{
	{ID: "colleague", Label: "Colleague"},
	{ID: "client", Label: "Client"},
	{ID: "boss", Label: "Boss"},
	{ID: "team", Label: "Team"},
}

// Occasions lists the quick-start occasions in display order.
func Occasions() []Occasion {
	return append([]Occasion(nil), occasions...)
}

func LookupOccasion(id string) (Occasion, bool) {
	for _, o := range occasions {
		if o.ID == id {
			return o, true
		}
	}
	return Occasion{}, false
}

// RecipientOptions returns the recipients offered for an occasion kind,
// followed by the custom entry.
func RecipientOptions(kind OccasionKind) []Recipient {
	base := personalRecipients
	if kind == OccasionCorporate {
		base = corporateRecipients
	}
	out := make([]Recipient, 0, len(base)+1)
	out = append(out, base...)
	return append(out, Recipient{ID: RecipientCustom, Label: "Someone else"})
}

// isKnownRecipient accepts any catalog recipient regardless of occasion kind.
func isKnownRecipient(id string) bool {
	if id == RecipientCustom {
		return true
	}
	for _, set := range [][]Recipient{personalRecipients, corporateRecipients} {
		for _, r := range set {
			if r.ID == id {
				return true
			}
		}
	}
	return false
}

// deriveQuery builds the suggested query for an occasion and recipient.
func deriveQuery(occasionLabel, recipientLabel string) string {
	return fmt.Sprintf("%s gifts for %s", occasionLabel, recipientLabel)
}
