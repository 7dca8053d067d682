package handler

import (
	"context"
	"encoding/json"
	"strings"

	"gift-concierge/internal/wizard"
)

// eventRequest is the body of POST /dialogs/{id}/events. Only the fields of
// the named type are read.
type eventRequest struct {
	Type        string          `json:"type"`
	OccasionID  string          `json:"occasionId"`
	RecipientID string          `json:"recipientId"`
	CustomText  string          `json:"customText"`
	Text        string          `json:"text"`
	IsCustom    bool            `json:"isCustom"`
	Sku         string          `json:"sku"`
	Feedback    string          `json:"feedback"`
	Step        json.RawMessage `json:"step"`
	Reason      string          `json:"reason"`
}

func (ev eventRequest) apply(ctx context.Context, ctrl *wizard.Controller) error {
	switch ev.Type {
	case "select_occasion":
		return ctrl.SelectOccasion(ev.OccasionID)
	case "select_recipient":
		return ctrl.SelectRecipient(ev.RecipientID, ev.CustomText)
	case "submit_free_text":
		return ctrl.SubmitFreeText(ctx, ev.Text)
	case "submit_query":
		return ctrl.SubmitQuery(ctx, ev.Text, ev.IsCustom)
	case "apply_refinement":
		return ctrl.ApplyRefinement(ctx, wizard.RefinementReason(ev.Reason))
	case "record_feedback":
		fb, err := wizard.ParseFeedback(ev.Feedback)
		if err != nil {
			return &wizard.Error{Code: wizard.ErrorInvalidInput, Reason: "unknown_feedback", Err: err}
		}
		return ctrl.RecordFeedback(ev.Sku, fb)
	case "navigate_back":
		// step may be sent as a name or a number
		step, err := wizard.ParseStep(strings.Trim(string(ev.Step), `"`))
		if err != nil {
			return &wizard.Error{Code: wizard.ErrorInvalidInput, Reason: "unknown_step", Err: err}
		}
		return ctrl.NavigateBack(step)
	case "track_click":
		return ctrl.TrackClick(ev.Sku)
	}
	return &wizard.Error{Code: wizard.ErrorInvalidInput, Reason: "unknown_event_type"}
}
