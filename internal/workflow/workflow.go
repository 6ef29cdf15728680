// Package workflow holds the comment moderation state machine: its states, the
// transitions between them and the guards that enable each transition.
package workflow

import (
	"fmt"

	"guestbook/internal/models"
)

// Transition names a move between two moderation states.
type Transition string

// Transitions of the comment workflow.
const (
	TransitionAccept      Transition = "accept"
	TransitionMightBeSpam Transition = "might_be_spam"
	TransitionRejectSpam  Transition = "reject_spam"
	TransitionPublish     Transition = "publish"
	TransitionPublishHam  Transition = "publish_ham"
	TransitionReject      Transition = "reject"
	TransitionRejectHam   Transition = "reject_ham"
	TransitionOptimize    Transition = "optimize"
)

// Class groups the transitions that the worker handles the same way.
type Class int

const (
	// ClassNone means no transition is enabled; the message is inert.
	ClassNone Class = iota
	// ClassClassify covers accept, might_be_spam and reject_spam.
	ClassClassify
	// ClassReview covers the human decisions.
	ClassReview
	// ClassOptimize covers the photo optimization step.
	ClassOptimize
)

func (c Class) String() string {
	switch c {
	case ClassClassify:
		return "classify"
	case ClassReview:
		return "review"
	case ClassOptimize:
		return "optimize"
	default:
		return "none"
	}
}

type edge struct {
	from []models.CommentState
	to   models.CommentState
}

var edges = map[Transition]edge{
	TransitionAccept:      {from: []models.CommentState{models.CommentStateSubmitted}, to: models.CommentStateHam},
	TransitionMightBeSpam: {from: []models.CommentState{models.CommentStateSubmitted}, to: models.CommentStatePotentialSpam},
	TransitionRejectSpam:  {from: []models.CommentState{models.CommentStateSubmitted}, to: models.CommentStateRejectedSpam},
	TransitionPublish:     {from: []models.CommentState{models.CommentStateHam}, to: models.CommentStatePublished},
	TransitionRejectHam:   {from: []models.CommentState{models.CommentStateHam}, to: models.CommentStateRejected},
	TransitionPublishHam:  {from: []models.CommentState{models.CommentStatePotentialSpam}, to: models.CommentStatePublishedHam},
	TransitionReject:      {from: []models.CommentState{models.CommentStatePotentialSpam}, to: models.CommentStateRejected},
	// optimize keeps the state and only flips the optimized marker.
	TransitionOptimize: {from: []models.CommentState{models.CommentStatePublished, models.CommentStatePublishedHam}},
}

// Classify returns the class of the transition enabled for a comment, checked in
// priority order: classification, review, optimization.
func Classify(state models.CommentState, optimized bool) Class {
	switch {
	case state == models.CommentStateSubmitted:
		return ClassClassify
	case state == models.CommentStateHam || state == models.CommentStatePotentialSpam:
		return ClassReview
	case state.Published() && !optimized:
		return ClassOptimize
	default:
		return ClassNone
	}
}

// Can reports whether t is enabled for c.
func Can(c *models.Comment, t Transition) bool {
	e, ok := edges[t]
	if !ok {
		return false
	}
	if t == TransitionOptimize && c.Optimized {
		return false
	}
	for _, from := range e.from {
		if c.State == from {
			return true
		}
	}
	return false
}

// Apply moves c along t. The comment is left untouched when t is not enabled.
func Apply(c *models.Comment, t Transition) error {
	if !Can(c, t) {
		return fmt.Errorf("%w: %s from %s", models.ErrIllegalTransition, t, c.State)
	}
	if t == TransitionOptimize {
		c.Optimized = true
		return nil
	}
	c.State = edges[t].to
	return nil
}

// TransitionForScore maps a spam score to its classification transition.
func TransitionForScore(score models.SpamScore) (Transition, error) {
	switch score {
	case models.SpamScoreHam:
		return TransitionAccept, nil
	case models.SpamScoreMaybe:
		return TransitionMightBeSpam, nil
	case models.SpamScoreBlatant:
		return TransitionRejectSpam, nil
	default:
		return "", fmt.Errorf("%w: unexpected spam score %d", models.ErrScoringUnavailable, score)
	}
}

// TransitionForDecision maps a reviewer decision on a comment in state to its transition.
func TransitionForDecision(state models.CommentState, approved bool) (Transition, error) {
	switch state {
	case models.CommentStateHam:
		if approved {
			return TransitionPublish, nil
		}
		return TransitionRejectHam, nil
	case models.CommentStatePotentialSpam:
		if approved {
			return TransitionPublishHam, nil
		}
		return TransitionReject, nil
	default:
		return "", fmt.Errorf("%w: comment in state %s is not awaiting review", models.ErrIllegalTransition, state)
	}
}

// Enabled lists the transitions currently enabled for c.
func Enabled(c *models.Comment) []Transition {
	var out []Transition
	for _, t := range []Transition{
		TransitionAccept, TransitionMightBeSpam, TransitionRejectSpam,
		TransitionPublish, TransitionRejectHam, TransitionPublishHam, TransitionReject,
		TransitionOptimize,
	} {
		if Can(c, t) {
			out = append(out, t)
		}
	}
	return out
}

// HasNextStep reports whether the worker still has work for a comment in this state.
func HasNextStep(c *models.Comment) bool {
	return Classify(c.State, c.Optimized) != ClassNone
}
