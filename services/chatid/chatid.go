// Package chatid derives conversation identifiers from participant pairs.
package chatid

import (
	"strings"

	errs "github.com/techagentng/collabhub/errors"
)

// Separator joins the two sorted participant ids. Identifiers containing it are
// rejected, so distinct pairs can never produce the same id.
const Separator = "_"

// Resolve returns the conversation id shared by a and b, whichever order they come in.
func Resolve(a, b string) (string, error) {
	first, second, err := Order(a, b)
	if err != nil {
		return "", err
	}
	return first + Separator + second, nil
}

// Order validates a pair and returns it sorted.
func Order(a, b string) (string, string, error) {
	if err := validate(a); err != nil {
		return "", "", err
	}
	if err := validate(b); err != nil {
		return "", "", err
	}
	if a == b {
		return "", "", errs.Wrap(errs.ErrInvalidParticipant, "a user cannot converse with themself")
	}
	if b < a {
		a, b = b, a
	}
	return a, b, nil
}

// Participants splits a conversation id back into its sorted pair.
func Participants(conversationID string) (string, string, error) {
	a, b, ok := strings.Cut(conversationID, Separator)
	if !ok || strings.Contains(b, Separator) {
		return "", "", errs.Wrap(errs.ErrInvalidParticipant, "malformed conversation id %q", conversationID)
	}
	first, second, err := Order(a, b)
	if err != nil {
		return "", "", err
	}
	if first != a {
		return "", "", errs.Wrap(errs.ErrInvalidParticipant, "conversation id %q is not canonical", conversationID)
	}
	return first, second, nil
}

func validate(id string) error {
	if id == "" {
		return errs.Wrap(errs.ErrInvalidParticipant, "participant id is empty")
	}
	if strings.Contains(id, Separator) {
		return errs.Wrap(errs.ErrInvalidParticipant, "participant id %q contains %q", id, Separator)
	}
	return nil
}
